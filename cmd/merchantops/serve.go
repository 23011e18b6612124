package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/merchantops/merchantops/internal/cache"
	"github.com/merchantops/merchantops/internal/config"
	httpapp "github.com/merchantops/merchantops/internal/http"
	"github.com/merchantops/merchantops/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the admin API, the metrics server and the cache invalidation listener.",
	Args:        cobra.NoArgs,
	Annotations: structuredLog(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	svc, err := rt.adminService()
	if err != nil {
		return err
	}

	srv, err := httpapp.NewEchoServer(svc, logger)
	if err != nil {
		return err
	}

	// The metrics server stops with ctx; a nil channel means it is disabled.
	_, metricsErrCh := metrics.StartServer(ctx, cfg.MetricsAddr, logger)

	go runInvalidationListener(ctx, rt, rt.routingViews, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "api_version", svc.APIVersion(), "environment", string(cfg.Environment))
		errCh <- srv.StartServer(httpServer)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-metricsErrCh:
		return err
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// runInvalidationListener evicts routing cache keys published by any
// instance until ctx ends.
func runInvalidationListener(ctx context.Context, rt *runtime, local *cache.Local, logger *slog.Logger) {
	var err error
	switch rt.cfg.CacheBackend {
	case cache.BackendRedis:
		err = cache.ListenRedis(ctx, rt.redis, rt.cfg.CacheChannel, local, logger)
	case cache.BackendPostgres:
		err = cache.ListenPostgres(ctx, rt.pool, rt.cfg.CacheChannel, local, logger)
	default:
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("cache invalidation listener stopped", "backend", rt.cfg.CacheBackend, "error", err)
	}
}
