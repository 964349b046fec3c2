package main

import (
	"context"
	"fmt"
	"sync"

	"compstat/internal/config"
	"compstat/internal/logging"
	"compstat/internal/runs"
	"compstat/internal/storage"

	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

type commandContext struct {
	configOnce sync.Once
	config     config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

// log falls back to a no-op logger when the configured level is invalid.
func (c *commandContext) log() *zap.Logger {
	c.loggerOnce.Do(func() {
		cfg, _ := c.ensureConfig()
		logger, err := logging.New(cfg.LogLevel)
		if err != nil {
			logger = zap.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) withStarter(fn func(*runs.Starter) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return fmt.Errorf("dial temporal: %w", err)
	}
	defer tc.Close()
	return fn(newStarter(tc, cfg))
}

func newStarter(tc runs.Client, cfg config.Config) *runs.Starter {
	return runs.NewStarter(tc, runs.Defaults{
		TaskQueue:     cfg.TemporalTaskQueue,
		LogDir:        cfg.HarvestLogDir,
		BatchSize:     cfg.RecordsPerBatch,
		MaxConcurrent: cfg.MaxBatches,
	})
}

func (c *commandContext) withDB(ctx context.Context, fn func(*storage.DB) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	return fn(db)
}
