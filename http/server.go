package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/quic-go/quic-go/http3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StaticHandler serves files ahead of routing. It reports whether it
// produced the response.
type StaticHandler interface {
	Serve(w http.ResponseWriter, r *http.Request) (bool, error)
}

// Renderer renders a named view.
type Renderer interface {
	Render(name string, data map[string]any) (string, error)
}

const (
	NotFoundView = "404"
	ErrorView    = "error"
)

type mount struct {
	prefix  string
	handler http.Handler
}

// Server dispatches requests: mounted handlers first, then static files,
// then the router.
type Server struct {
	Name        string
	Router      *Router
	Static      StaticHandler
	Views       Renderer
	Development bool
	Logger      *slog.Logger

	// Layout holds values merged into every 404 and error page.
	Layout map[string]any

	mounts []mount
	tracer trace.Tracer
}

func NewServer(name string) *Server {
	return &Server{
		Name:   name,
		Router: NewRouter(),
		Logger: slog.Default(),
		tracer: otel.Tracer(instrumentationName),
	}
}

// Mount hands every request whose path starts with prefix to handler.
func (s *Server) Mount(prefix string, handler http.Handler) {
	s.mounts = append(s.mounts, mount{prefix: prefix, handler: handler})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, m := range s.mounts {
		if strings.HasPrefix(r.URL.Path, m.prefix) {
			m.handler.ServeHTTP(w, r)
			return
		}
	}

	spanCtx, span := s.tracer.Start(r.Context(), r.Method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
		),
	)
	defer span.End()

	ctx := NewRequestContext(w, r.WithContext(spanCtx))

	defer func() {
		if recovered := recover(); recovered != nil {
			s.Logger.ErrorContext(spanCtx, "panic while serving request",
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
			s.finish(ctx, span, None, fmt.Errorf("panic: %v", recovered))
		}
	}()

	result, err := s.dispatch(ctx, span)
	s.finish(ctx, span, result, err)
}

func (s *Server) dispatch(ctx *RequestContext, span trace.Span) (Result, error) {
	if s.Static != nil {
		handled, err := s.Static.Serve(ctx.Response, ctx.Request)
		if err != nil {
			return None, err
		}
		if handled {
			span.SetAttributes(attribute.Bool("storefront.static", true))
			return Stop, nil
		}
	}

	match := s.Router.FindRoute(ctx.Request.Method, ctx.Request.URL.Path)
	if match == nil {
		return None, s.NotFound(ctx)
	}

	span.SetName(ctx.Request.Method + " " + match.Route.Pattern)
	span.SetAttributes(attribute.String("http.route", match.Route.Pattern))

	return s.Router.Execute(ctx, match)
}

func (s *Server) finish(ctx *RequestContext, span trace.Span, result Result, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		// A failed request must never be replayed from the response cache.
		if d, ok := ctx.Response.(interface{ discard() }); ok {
			d.discard()
		}
		s.fail(ctx, err)
	} else if result.Kind == KindTerminal && !ctx.Response.Written() {
		if err := s.sendValue(ctx, result.Value); err != nil {
			s.Logger.ErrorContext(ctx.Context(), "writing handler result failed", "error", err)
		}
	}

	if !ctx.Response.Finished() {
		if err := ctx.Response.End(nil); err != nil {
			s.Logger.WarnContext(ctx.Context(), "finalizing response failed", "error", err)
		}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", ctx.Response.Status()))
}

// NotFound answers with the 404 view.
func (s *Server) NotFound(ctx *RequestContext) error {
	return s.sendPage(ctx, http.StatusNotFound, NotFoundView, map[string]any{
		"title":           "Page not found",
		"message":         fmt.Sprintf("The path %s does not exist on this server.", ctx.Request.URL.Path),
		"isAuthenticated": false,
		"isGuest":         true,
	})
}

func (s *Server) fail(ctx *RequestContext, err error) {
	status := StatusOf(err)

	if ctx.Response.Written() {
		s.Logger.ErrorContext(ctx.Context(), "request failed after response was sent",
			"url", ctx.Request.URL.RequestURI(),
			"error", err,
		)
		return
	}

	var sendErr error
	switch {
	case status == http.StatusNotFound:
		sendErr = s.NotFound(ctx)
	case status >= http.StatusInternalServerError:
		s.Logger.ErrorContext(ctx.Context(), "request failed",
			"url", ctx.Request.URL.RequestURI(),
			"error", err,
		)

		message := "An unexpected error occurred."
		if s.Development {
			message = err.Error()
		}

		sendErr = s.sendPage(ctx, status, ErrorView, map[string]any{
			"title":           "Server error",
			"message":         message,
			"isAuthenticated": false,
			"isGuest":         true,
		})
	default:
		s.Logger.InfoContext(ctx.Context(), "request rejected",
			"url", ctx.Request.URL.RequestURI(),
			"status", status,
			"error", err,
		)
		sendErr = ctx.SendText(status, http.StatusText(status)+": "+err.Error())
	}

	if sendErr != nil {
		s.Logger.ErrorContext(ctx.Context(), "writing error response failed", "error", sendErr)
	}
}

func (s *Server) sendPage(ctx *RequestContext, status int, view string, data map[string]any) error {
	if s.Views == nil {
		return ctx.SendText(status, http.StatusText(status))
	}

	page := make(map[string]any, len(s.Layout)+len(data))
	maps.Copy(page, s.Layout)
	maps.Copy(page, data)

	html, err := s.Views.Render(view, page)
	if err != nil {
		s.Logger.ErrorContext(ctx.Context(), "rendering view failed", "view", view, "error", err)
		return ctx.SendText(status, http.StatusText(status))
	}

	return ctx.SendHTML(status, html)
}

func (s *Server) sendValue(ctx *RequestContext, value any) error {
	switch v := value.(type) {
	case string:
		return ctx.SendHTML(http.StatusOK, v)
	case []byte:
		return ctx.SendBytes(http.StatusOK, "application/octet-stream", v)
	default:
		return ctx.SendJSON(http.StatusOK, v)
	}
}

// ListenConfig controls the listeners started by ListenAndServe.
type ListenConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// CertFile and KeyFile enable TLS on Addr.
	CertFile string
	KeyFile  string

	// HTTP3Addr additionally serves HTTP/3 over QUIC. Requires TLS.
	HTTP3Addr string
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, config ListenConfig) error {
	handler := otelhttp.NewHandler(s, s.Name)

	var h3 *http3.Server
	if config.HTTP3Addr != "" {
		if config.CertFile == "" || config.KeyFile == "" {
			return errors.New("http: HTTP/3 requires a certificate and key")
		}

		h3 = &http3.Server{Addr: config.HTTP3Addr, Handler: handler}
		next := handler
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := h3.SetQUICHeaders(w.Header()); err != nil {
				s.Logger.DebugContext(r.Context(), "advertising HTTP/3 failed", "error", err)
			}
			next.ServeHTTP(w, r)
		})
	}

	server := &http.Server{
		Addr:         config.Addr,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.Logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 2)

	go func() {
		s.Logger.Info("listening", "server", s.Name, "addr", config.Addr, "tls", config.CertFile != "")
		var err error
		if config.CertFile != "" {
			err = server.ListenAndServeTLS(config.CertFile, config.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		errCh <- err
	}()

	if h3 != nil {
		go func() {
			s.Logger.Info("listening", "server", s.Name, "addr", config.HTTP3Addr, "protocol", "h3")
			errCh <- h3.ListenAndServeTLS(config.CertFile, config.KeyFile)
		}()
	}

	select {
	case err := <-errCh:
		if h3 != nil {
			_ = h3.Close()
		}
		_ = server.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.Logger.Info("shutting down", "server", s.Name)

	if h3 != nil {
		if err := h3.Close(); err != nil {
			s.Logger.Warn("closing HTTP/3 listener failed", "error", err)
		}
	}

	return server.Shutdown(shutdownCtx)
}
