package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freekieb7/storefront/config"
	"github.com/freekieb7/storefront/http"
	"github.com/freekieb7/storefront/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Start the storefront HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v)
		},
	}

	flags := serveCmd.Flags()
	flags.String("host", "0.0.0.0", "address to listen on")
	flags.IntP("port", "p", 3000, "port to listen on")
	flags.Int("http3-port", 0, "UDP port for HTTP/3 (requires TLS)")
	bindFlag(v, "server.host", flags.Lookup("host"))
	bindFlag(v, "server.port", flags.Lookup("port"))
	bindFlag(v, "server.http3_port", flags.Lookup("http3-port"))

	return serveCmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	environment := "production"
	if cfg.Development {
		environment = "development"
	}

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: environment,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	logger := telemetry.NewLogger(cfg.Telemetry.ServiceName, telemetry.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	}, providers)

	app, err := build(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Development {
		go func() {
			if err := app.views.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("watching views failed", "error", err)
			}
		}()
	}

	go func() {
		if err := app.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	logger.Info("storefront starting",
		"addr", cfg.Server.Addr(),
		"development", cfg.Development,
		"telemetry", providers.Enabled(),
	)

	return app.server.ListenAndServe(ctx, http.ListenConfig{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CertFile:        cfg.Server.CertFile,
		KeyFile:         cfg.Server.KeyFile,
		HTTP3Addr:       cfg.Server.HTTP3Addr(),
	})
}
