package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobcoordinator/internal/api"
	"jobcoordinator/internal/blobcache"
	"jobcoordinator/internal/config"
	"jobcoordinator/internal/coordinator"
	"jobcoordinator/internal/lockstore"
	applog "jobcoordinator/internal/log"
	"jobcoordinator/internal/router"
)

// newServeCommand wires every collaborator from config.Load() and runs
// the HTTP front door until SIGINT/SIGTERM, draining the bounded worker
// pool before exit.
func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front door and background job handler pool.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := applog.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	lock := lockstore.NewRedisStore(lockstore.RedisConfig{
		Host:        cfg.RedisHost,
		Port:        cfg.RedisPort,
		DB:          cfg.RedisDB,
		JobPrefix:   cfg.RedisJobKeyPrefix,
		ErrorPrefix: cfg.RedisErrorKeyPrefix,
		ErrorExpiry: cfg.ErrorExpiry,
	}, logger)
	defer lock.Close() //nolint:errcheck

	cache := blobcache.NewHTTPCache(cfg.DataCacheURL, cfg.UpstreamTimeout)
	upstream := router.New(cfg.RouterURL, cfg.UpstreamTimeout)

	handlerCfg := coordinator.Config{
		JobExpiry:        cfg.JobExpiry,
		ErrorExpiry:      cfg.ErrorExpiry,
		MaxRetries:       cfg.MaxRetries,
		RetrySleep:       cfg.RetrySleep,
		CheckErrorsEvery: cfg.CheckErrorsEvery,
	}
	handler := coordinator.New(lock, cache, upstream, handlerCfg, logger)
	pool := coordinator.NewPool(cfg.MaxConcurrentJobs)

	dispatcher := &api.Dispatcher{
		Cache:   cache,
		Lock:    lock,
		Handler: handler,
		Pool:    pool,
		Log:     logger,
		Metrics: api.NewMetrics(prometheus.DefaultRegisterer),
	}

	mux := api.NewRouter(dispatcher)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		return err
	}

	for pool.InUse() > 0 {
		select {
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timed out with in-flight handlers", zap.Int("in_use", pool.InUse()))
			return nil
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}
