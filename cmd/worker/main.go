package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"compstat/internal/activities"
	"compstat/internal/config"
	"compstat/internal/logging"
	"compstat/internal/metrics"
	"compstat/internal/storage"
	"compstat/internal/workflows"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	m := metrics.NewCollector()
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	defer func() { _ = metricsSrv.Close() }()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("temporal dial failed", zap.Error(err))
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	a, err := activities.New(cfg, db, logger, m)
	if err != nil {
		logger.Fatal("activities setup failed", zap.Error(err))
	}
	activities.Register(w, a)

	logger.Info("compstat worker listening",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("metrics_addr", cfg.MetricsAddr))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
