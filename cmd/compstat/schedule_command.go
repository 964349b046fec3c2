package main

import (
	"context"
	"fmt"
	"time"

	"compstat/internal/config"
	"compstat/internal/runs"
	"compstat/internal/workflows"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

const startTimeout = 30 * time.Second

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Start harvest and completeness runs on their cron schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.log()
			tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
			if err != nil {
				return fmt.Errorf("dial temporal: %w", err)
			}
			defer tc.Close()

			scheduler, err := newScheduler(cfg, newStarter(tc, cfg), logger)
			if err != nil {
				return err
			}
			scheduler.Start()
			logger.Info("scheduler started",
				zap.String("harvest", cfg.HarvestSchedule),
				zap.String("completeness", cfg.CompleteSchedule))
			<-cmd.Context().Done()
			<-scheduler.Stop().Done()
			logger.Info("scheduler stopped")
			return nil
		},
	}
}

// newScheduler registers the harvest and completeness jobs. An empty
// schedule disables that job.
func newScheduler(cfg config.Config, starter *runs.Starter, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	if cfg.HarvestSchedule != "" {
		_, err := c.AddFunc(cfg.HarvestSchedule, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
			defer cancel()
			run, err := starter.StartHarvest(jobCtx, workflows.HarvestInput{Latest: true})
			if err != nil {
				logger.Error("scheduled harvest failed", zap.Error(err))
				return
			}
			logger.Info("scheduled harvest started", zap.String("workflow_id", run.WorkflowID))
		})
		if err != nil {
			return nil, fmt.Errorf("harvest schedule %q: %w", cfg.HarvestSchedule, err)
		}
	}
	if cfg.CompleteSchedule != "" {
		targets := cfg.ExportTargets()
		_, err := c.AddFunc(cfg.CompleteSchedule, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
			defer cancel()
			in := workflows.CompletenessInput{Recompute: true, Export: len(targets) > 0, Targets: targets}
			run, err := starter.StartCompleteness(jobCtx, in)
			if err != nil {
				logger.Error("scheduled completeness failed", zap.Error(err))
				return
			}
			logger.Info("scheduled completeness started", zap.String("workflow_id", run.WorkflowID))
		})
		if err != nil {
			return nil, fmt.Errorf("completeness schedule %q: %w", cfg.CompleteSchedule, err)
		}
	}
	return c, nil
}
