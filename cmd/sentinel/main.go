// Command sentinel keeps the configured regions' points of interest in sync
// and serves their status over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/region-sentinel/internal/adapter/http"
	"github.com/couchcryptid/region-sentinel/internal/bootstrap"
	"github.com/couchcryptid/region-sentinel/internal/config"
	"github.com/couchcryptid/region-sentinel/internal/observability"
	"github.com/couchcryptid/region-sentinel/internal/regionsync"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	if len(cfg.Regions) == 0 {
		logger.Warn("no regions configured; set REGIONS to id:lat:lng:radius entries")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg, clock, logger, metrics)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	scheduler := regionsync.NewScheduler(components.Engine, cfg.Regions, cfg.SyncInterval, clock, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, scheduler, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start periodic sync.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("sync pass still running at shutdown deadline")
	}
	components.Close(logger)

	logger.Info("shutdown complete")
}
