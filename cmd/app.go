package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/freekieb7/storefront/cache"
	"github.com/freekieb7/storefront/catalog"
	"github.com/freekieb7/storefront/config"
	"github.com/freekieb7/storefront/filesystem"
	"github.com/freekieb7/storefront/http"
	"github.com/freekieb7/storefront/metrics"
	"github.com/freekieb7/storefront/schedule"
	"github.com/freekieb7/storefront/session/storage"
	"github.com/freekieb7/storefront/static"
	"github.com/freekieb7/storefront/storefront"
	"github.com/freekieb7/storefront/upload"
	"github.com/freekieb7/storefront/view"
	"github.com/prometheus/client_golang/prometheus"
)

// preloaded are served from memory from the first request on.
var preloaded = []string{"css/styles.css", "js/app.js"}

type application struct {
	server    *http.Server
	views     *view.Engine
	cache     *cache.Store
	sessions  *storage.MemorySessionStore
	scheduler *schedule.Scheduler
	metrics   *metrics.Metrics
}

// build wires every component from cfg without starting anything.
func build(cfg *config.Config, logger *slog.Logger) (*application, error) {
	fs := filesystem.NewLocalFileSystem()

	products, err := catalog.Load(cfg.Paths.Products, fs)
	if err != nil {
		return nil, err
	}

	users, err := catalog.LoadUsers(cfg.Paths.Users, fs)
	if err != nil {
		return nil, err
	}

	uploads, err := newUploadStore(cfg, fs)
	if err != nil {
		return nil, err
	}

	views := view.New(cfg.Paths.Views, view.WithFilesystem(fs), view.WithLogger(logger))

	files := static.New(cfg.Paths.Public, static.WithFilesystem(fs), static.WithLogger(logger))
	files.Preload(preloaded...)

	responses := cache.New(cache.WithTTL(cfg.Cache.TTL))
	sessions := storage.NewMemorySessionStore()

	options := []storefront.Option{
		storefront.WithSessions(sessions),
		storefront.WithCache(responses),
		storefront.WithUploads(uploads),
		storefront.WithLogger(logger),
		storefront.WithFormatter(storefront.NewFormatter(cfg.Shop.Locale, cfg.Shop.Currency)),
		storefront.WithLimits(cfg.Server.MaxBodySize, cfg.Upload.MaxSize),
		storefront.WithCookies(cfg.Session.Secure, cfg.Session.MaxAge),
		storefront.WithShop(storefront.Shop{
			Name:        cfg.Shop.Name,
			Description: cfg.Shop.Description,
			Founded:     cfg.Shop.Founded,
			Featured:    cfg.Shop.Featured,
		}),
	}

	var m *metrics.Metrics
	if cfg.Telemetry.Metrics {
		m = metrics.New(metrics.WithConstLabels(prometheus.Labels{"service": cfg.Telemetry.ServiceName}))
		m.Gauge("cache_entries", "Responses held by the response cache", func() float64 {
			return float64(responses.Len())
		})
		m.Gauge("sessions", "Open sessions", func() float64 {
			return float64(sessions.Len())
		})
		m.Gauge("products", "Products in the catalog", func() float64 {
			return float64(len(products.All()))
		})
		options = append(options, storefront.WithMetrics(m))
	}

	app := storefront.New(products, users, views, options...)

	server := http.NewServer(cfg.Telemetry.ServiceName)
	server.Static = files
	server.Views = views
	server.Development = cfg.Development
	server.Logger = logger
	server.Layout = map[string]any{"shop": cfg.Shop.Name}
	if m != nil {
		server.Mount(cfg.Telemetry.MetricsPath, m.Handler())
	}
	app.Register(server.Router)

	scheduler := schedule.NewScheduler(schedule.WithLogger(logger))
	if cfg.Cache.TTL > 0 && cfg.Cache.PurgeInterval > 0 {
		purge := schedule.NewJob("cache-purge").
			WithInterval(cfg.Cache.PurgeInterval).
			WithTasks(func(ctx context.Context) error {
				if removed := responses.Purge(); removed > 0 {
					logger.DebugContext(ctx, "expired responses purged", "count", removed)
				}
				return nil
			})
		if err := scheduler.AddJob(purge); err != nil {
			return nil, fmt.Errorf("scheduling cache purge: %w", err)
		}
	}

	return &application{
		server:    server,
		views:     views,
		cache:     responses,
		sessions:  sessions,
		scheduler: scheduler,
		metrics:   m,
	}, nil
}

func newUploadStore(cfg *config.Config, fs filesystem.Filesystem) (upload.Store, error) {
	switch cfg.Upload.Backend {
	case "s3":
		s3 := cfg.Upload.S3
		client := upload.NewS3Client(upload.S3Config{
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			UsePathStyle:    s3.UsePathStyle,
		})
		return upload.NewS3Store(client, s3.Bucket, s3.Prefix, s3.PublicURL), nil
	case "disk":
		if err := fs.CreateDirectory(cfg.Paths.Images); err != nil {
			return nil, fmt.Errorf("creating image directory: %w", err)
		}
		return upload.NewDiskStore(cfg.Paths.Images, fs), nil
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Upload.Backend)
	}
}
