package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/freekieb7/storefront/multipart"
	"github.com/freekieb7/storefront/session"
)

const DefaultMaxBodySize = 10 << 20

// Logger logs every request that reached the router.
func Logger(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx *RequestContext) (Result, error) {
		logger.InfoContext(ctx.Context(), "request",
			"method", ctx.Request.Method,
			"url", ctx.Request.URL.RequestURI(),
		)
		return Continue, nil
	}
}

// CORS allows any origin to call the simple methods.
func CORS() Handler {
	return func(ctx *RequestContext) (Result, error) {
		header := ctx.Response.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		header.Set("Access-Control-Allow-Headers", "Content-Type")
		return Continue, nil
	}
}

// JSONBody decodes application/json bodies into ctx.JSON.
func JSONBody(maxSize int64) Handler {
	return func(ctx *RequestContext) (Result, error) {
		if !hasContentType(ctx.Request, "application/json") {
			return Continue, nil
		}

		body, err := readBody(ctx, maxSize)
		if err != nil {
			return None, err
		}

		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return None, fmt.Errorf("%w: invalid JSON: %v", ErrBadRequest, err)
		}

		ctx.JSON = payload
		return Continue, nil
	}
}

// MultipartBody decodes multipart/form-data bodies into ctx.Form. Requests
// without a boundary are left untouched.
func MultipartBody(maxSize int64) Handler {
	return func(ctx *RequestContext) (Result, error) {
		if !hasContentType(ctx.Request, "multipart/form-data") {
			return Continue, nil
		}

		boundary, ok := multipart.Boundary(ctx.Request.Header.Get("Content-Type"))
		if !ok {
			return Continue, nil
		}

		body, err := readBody(ctx, maxSize)
		if err != nil {
			return None, err
		}

		ctx.Form = multipart.Parse(body, boundary)
		return Continue, nil
	}
}

// Sessions resolves the session named by the session cookie. The user is
// the session's "user" attribute, or the session itself when it has none.
func Sessions(store session.Store) Handler {
	return func(ctx *RequestContext) (Result, error) {
		ctx.Session = nil
		ctx.User = nil

		id, err := ctx.Cookie(session.CookieName)
		if err != nil || id == "" {
			return Continue, nil
		}

		sess, err := store.Get(id)
		if errors.Is(err, session.ErrSessionNotFound) {
			return Continue, nil
		}
		if err != nil {
			return None, fmt.Errorf("loading session: %w", err)
		}

		ctx.Session = sess
		ctx.User = sess.Get("user", nil)
		if ctx.User == nil {
			ctx.User = sess
		}

		return Continue, nil
	}
}

// Timing logs the status and duration of each request once it finishes.
func Timing(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx *RequestContext) (Result, error) {
		ctx.Response = &timingResponse{
			Response: ctx.Response,
			start:    time.Now(),
			onFinish: func(status int, elapsed time.Duration) {
				logger.InfoContext(ctx.Context(), "request finished",
					"url", ctx.Request.URL.RequestURI(),
					"status", status,
					"duration", elapsed,
				)
			},
		}
		return Continue, nil
	}
}

type timingResponse struct {
	Response
	start    time.Time
	onFinish func(status int, elapsed time.Duration)
}

func (r *timingResponse) End(body []byte) error {
	err := r.Response.End(body)
	if err == nil {
		r.onFinish(r.Status(), time.Since(r.start))
	}
	return err
}

func hasContentType(r *http.Request, mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), mediaType)
}

func readBody(ctx *RequestContext, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}

	body, err := io.ReadAll(http.MaxBytesReader(ctx.Response, ctx.Request.Body, maxSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &Error{Status: http.StatusRequestEntityTooLarge, Err: err}
		}
		return nil, fmt.Errorf("%w: reading body: %v", ErrBadRequest, err)
	}

	return body, nil
}
