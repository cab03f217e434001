// Package metrics exposes request metrics in the Prometheus format.
package metrics

import (
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/freekieb7/storefront/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatchedRoute = "unmatched"

type Config struct {
	Namespace   string
	ConstLabels prometheus.Labels
	Buckets     []float64
	Registry    *prometheus.Registry
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry registers on registry instead of a private one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

type Metrics struct {
	config          Config
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheFlushes    prometheus.Counter
}

func New(opts ...Option) *Metrics {
	config := Config{
		Namespace: "storefront",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&config)
	}

	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
		config.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		config: config,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "requests_total",
			Help:        "Requests handled by route and status",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "request_duration_seconds",
			Help:        "Request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method", "route"}),
		cacheFlushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "cache_flushes_total",
			Help:        "Full response cache invalidations",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Gauge publishes the value of fn on every scrape.
func (m *Metrics) Gauge(name, help string, fn func() float64) {
	promauto.With(m.config.Registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   m.config.Namespace,
		Name:        name,
		Help:        help,
		ConstLabels: m.config.ConstLabels,
	}, fn)
}

// CacheFlushed counts a response cache invalidation.
func (m *Metrics) CacheFlushed() {
	m.cacheFlushes.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.config.Registry
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() nethttp.Handler {
	return promhttp.HandlerFor(m.config.Registry, promhttp.HandlerOpts{Registry: m.config.Registry})
}

// Middleware observes every routed request once its response ends.
func (m *Metrics) Middleware() http.Handler {
	return func(ctx *http.RequestContext) (http.Result, error) {
		route := unmatchedRoute
		if ctx.Route != nil {
			route = ctx.Route.Pattern
		}

		ctx.Response = &observedResponse{
			Response: ctx.Response,
			start:    time.Now(),
			observe: func(status int, elapsed time.Duration) {
				method := ctx.Request.Method
				m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
				m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
			},
		}

		return http.Continue, nil
	}
}

type observedResponse struct {
	http.Response
	start   time.Time
	observe func(status int, elapsed time.Duration)
}

func (r *observedResponse) End(body []byte) error {
	err := r.Response.End(body)
	if err == nil {
		r.observe(r.Status(), time.Since(r.start))
	}
	return err
}
