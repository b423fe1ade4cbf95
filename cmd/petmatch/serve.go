package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/config"
	logpkg "github.com/kailas-cloud/petmatch/internal/logger"
	"github.com/kailas-cloud/petmatch/internal/metrics"
	chiTransport "github.com/kailas-cloud/petmatch/internal/transport/chi"
	"github.com/kailas-cloud/petmatch/internal/usecase/automatch"
	"github.com/kailas-cloud/petmatch/internal/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the automatic matching scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	cfg, logger := a.cfg, a.logger
	logger.Info("Starting petmatch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	var scheduler *automatch.Scheduler
	if cfg.AutoMatch.Enabled {
		var opts []automatch.SchedulerOption
		if l := a.sweepLease(); l != nil {
			opts = append(opts, automatch.WithLease(l))
		}
		scheduler = automatch.NewScheduler(a.sweeper, config.Seconds(cfg.AutoMatch.IntervalSec), logger, opts...)
		scheduler.Start(logpkg.ContextWithLogger(context.Background(), logger))
		logger.Info("Automatic matching scheduled",
			zap.Int("interval_sec", cfg.AutoMatch.IntervalSec),
			zap.Int("max_days", cfg.AutoMatch.MaxDays),
			zap.Int("max_pets", cfg.AutoMatch.MaxPets),
		)
	}

	server := chiTransport.NewServer(a.matching, a.sweeper, a.health, cfg.Auth.AdminAPIKeys, logger)

	apiKeys := append(append([]string{}, cfg.Auth.APIKeys...), cfg.Auth.AdminAPIKeys...)
	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  config.Seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout: config.Seconds(cfg.HTTP.WriteTimeoutSec),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.HTTP.ShutdownSec))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
