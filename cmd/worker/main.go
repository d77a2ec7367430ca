package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"twinforge/backend/internal/ai"
	"twinforge/backend/internal/config"
	"twinforge/backend/internal/db"
	"twinforge/backend/internal/observability"
	"twinforge/backend/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("startup_failed", observability.Fields{
			"step":  "db_connect",
			"error": err.Error(),
		})
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		logger.Error("startup_failed", observability.Fields{
			"step":  "run_migrations",
			"error": err.Error(),
		})
		os.Exit(1)
	}

	llm := ai.NewFromConfig(cfg)
	w := worker.New(cfg, pool, llm)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           w.ObservabilityHandler(),
		ReadHeaderTimeout: cfg.APIReadTimeout,
		ReadTimeout:       cfg.APIReadTimeout,
		WriteTimeout:      cfg.APIWriteTimeout,
		IdleTimeout:       cfg.APIIdleTimeout,
	}
	metricsErrCh := make(chan error, 1)

	go func() {
		logger.Info("worker_metrics_listening", observability.Fields{
			"addr": ":" + cfg.WorkerMetricsPort,
		})
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			metricsErrCh <- err
		}
	}()

	logger.Info("worker_started", observability.Fields{
		"poll_every_ms": cfg.WorkerPollEvery.Milliseconds(),
	})
	workerDoneCh := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(workerDoneCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-metricsErrCh:
		logger.Error("worker_metrics_server_failed", observability.Fields{"error": err.Error()})
		stop()
	case <-workerDoneCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker_metrics_shutdown_failed", observability.Fields{"error": err.Error()})
	}
	<-workerDoneCh
	logger.Info("worker_stopped", nil)
}
