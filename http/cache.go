package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"

	"github.com/freekieb7/storefront/cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/freekieb7/storefront/http"

type cacheConfig struct {
	logger *slog.Logger
	meter  metric.Meter
}

type CacheOption func(*cacheConfig)

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *cacheConfig) {
		c.logger = logger
	}
}

// WithCacheMeter sets the meter lookups are counted on. Defaults to the
// global meter provider.
func WithCacheMeter(meter metric.Meter) CacheOption {
	return func(c *cacheConfig) {
		c.meter = meter
	}
}

// Cache replays stored 200 responses keyed by path and raw query. On a miss
// it records the handler's output and stores it once the response ends
// with status 200. Storing is best effort and never fails the request.
func Cache(store *cache.Store, opts ...CacheOption) Handler {
	config := cacheConfig{
		logger: slog.Default(),
		meter:  otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(&config)
	}

	lookups, err := config.meter.Int64Counter("storefront.cache.lookups",
		metric.WithDescription("Response cache lookups by outcome"),
		metric.WithUnit("{lookup}"))
	if err != nil {
		config.logger.Warn("creating cache counter failed", "error", err)
	}

	count := func(ctx *RequestContext, outcome string) {
		if lookups != nil {
			lookups.Add(ctx.Context(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		}
	}

	return func(ctx *RequestContext) (Result, error) {
		key := ctx.CacheKey()

		if entry, found := store.Get(key); found {
			count(ctx, "hit")

			header := ctx.Response.Header()
			for name, value := range entry.Headers {
				header.Set(name, value)
			}
			ctx.Response.WriteHeader(entry.StatusCode)
			if err := ctx.Response.End([]byte(entry.Body)); err != nil {
				return None, err
			}

			return Stop, nil
		}

		count(ctx, "miss")
		ctx.Response = &cachingResponse{
			Response: ctx.Response,
			key:      key,
			store:    store,
			logger:   config.logger,
		}

		return Continue, nil
	}
}

// cachingResponse passes output through while keeping a copy of the body.
type cachingResponse struct {
	Response
	key       string
	store     *cache.Store
	logger    *slog.Logger
	body      bytes.Buffer
	discarded bool
}

// discard drops the recorded copy so End no longer stores it.
func (r *cachingResponse) discard() {
	r.discarded = true
	r.body.Reset()
}

func (r *cachingResponse) Write(p []byte) (int, error) {
	n, err := r.Response.Write(p)
	if !r.discarded {
		r.body.Write(p[:n])
	}
	return n, err
}

func (r *cachingResponse) End(body []byte) error {
	if r.Finished() {
		return ErrResponseFinished
	}

	if r.discarded {
		return r.Response.End(body)
	}

	r.body.Write(body)

	if r.Status() == http.StatusOK {
		entry := cache.Entry{
			StatusCode: http.StatusOK,
			Headers:    snapshotHeaders(r.Header()),
			Body:       r.body.String(),
		}

		if err := r.store.Set(r.key, entry); err != nil {
			r.logger.Warn("storing cached response failed", "key", r.key, "error", err)
		}
	}

	return r.Response.End(body)
}

func snapshotHeaders(header http.Header) map[string]string {
	headers := make(map[string]string, len(header))
	for name, values := range header {
		if strings.EqualFold(name, "Set-Cookie") || len(values) == 0 {
			continue
		}
		headers[name] = strings.Join(values, ", ")
	}
	return headers
}
