package main

import (
	"fmt"

	"compstat/internal/runs"
	"compstat/internal/workflows"

	"github.com/spf13/cobra"
)

func newRunCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newHarvestCommand(ctx),
		newRetryCommand(ctx),
		newCompletenessCommand(ctx),
		newExportCommand(ctx),
		newLoadClassicCommand(ctx),
		newProgressCommand(ctx),
	}
}

func newHarvestCommand(ctx *commandContext) *cobra.Command {
	var in workflows.HarvestInput

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Reconcile the files listed in the harvest logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStarter(func(s *runs.Starter) error {
				run, err := s.StartHarvest(cmd.Context(), in)
				if err != nil {
					return err
				}
				return writeJSON(cmd, run)
			})
		},
	}
	cmd.Flags().StringVar(&in.Publisher, "publisher", "", "Only process logs from this publisher")
	cmd.Flags().BoolVar(&in.Latest, "latest", false, "Only process the most recent log")
	cmd.Flags().StringVar(&in.LogDir, "log-dir", "", "Harvest log directory (defaults to HARVEST_LOG_DIR)")
	cmd.Flags().IntVar(&in.BatchSize, "batch-size", 0, "Files per batch (defaults to RECORDS_PER_BATCH)")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var in workflows.RetryInput

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Reprocess ledger files whose match type warrants another attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStarter(func(s *runs.Starter) error {
				run, err := s.StartRetry(cmd.Context(), in)
				if err != nil {
					return err
				}
				return writeJSON(cmd, run)
			})
		},
	}
	cmd.Flags().StringSliceVar(&in.MatchTypes, "type", nil, "Match types to retry (default mismatch,unmatched,failed)")
	return cmd
}

func newCompletenessCommand(ctx *commandContext) *cobra.Command {
	var in workflows.CompletenessInput

	cmd := &cobra.Command{
		Use:   "completeness",
		Short: "Recompute the per-volume completeness summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Recompute = true
			in.Export = in.Export || len(in.Targets) > 0
			return startCompleteness(ctx, cmd, in)
		},
	}
	cmd.Flags().BoolVar(&in.Export, "export", false, "Export the document after recomputing")
	cmd.Flags().StringArrayVar(&in.Targets, "target", nil, "Export destination (file, .parquet or s3://bucket/key)")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var in workflows.CompletenessInput

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored completeness summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Export = true
			return startCompleteness(ctx, cmd, in)
		},
	}
	cmd.Flags().StringArrayVar(&in.Targets, "target", nil, "Export destination (file, .parquet or s3://bucket/key)")
	return cmd
}

func startCompleteness(ctx *commandContext, cmd *cobra.Command, in workflows.CompletenessInput) error {
	return ctx.withStarter(func(s *runs.Starter) error {
		run, err := s.StartCompleteness(cmd.Context(), in)
		if err != nil {
			return err
		}
		return writeJSON(cmd, run)
	})
}

func newLoadClassicCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load-classic",
		Short: "Replace the classic reference tables from the flat files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStarter(func(s *runs.Starter) error {
				run, err := s.StartLoadClassic(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd, run)
			})
		},
	}
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <workflow-id>",
		Short: "Show the progress of a harvest or retry run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStarter(func(s *runs.Starter) error {
				prog, err := s.Progress(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("progress for %s: %w", args[0], err)
				}
				return writeJSON(cmd, prog)
			})
		},
	}
}
