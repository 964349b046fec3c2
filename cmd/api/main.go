package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"compstat/internal/api"
	"compstat/internal/config"
	"compstat/internal/logging"
	"compstat/internal/metrics"
	"compstat/internal/runs"
	"compstat/internal/storage"

	"github.com/gin-gonic/gin"
	tclient "go.temporal.io/sdk/client"
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
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("temporal dial failed", zap.Error(err))
	}
	defer tc.Close()

	starter := runs.NewStarter(tc, runs.Defaults{
		TaskQueue:     cfg.TemporalTaskQueue,
		LogDir:        cfg.HarvestLogDir,
		BatchSize:     cfg.RecordsPerBatch,
		MaxConcurrent: cfg.MaxBatches,
	})
	h := api.NewServer(storage.NewLedgerRepo(db), storage.NewSummaryRepo(db), starter, db, metrics.NewCollector().Handler(), logger)

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           h.Routes(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.Info("compstat api listening", zap.String("addr", cfg.APIAddr))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}
