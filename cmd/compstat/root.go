package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "compstat",
		Short:         "Crossref to classic reconciliation and completeness statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	for _, cmd := range newRunCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newReconcileCommand(ctx))
	rootCmd.AddCommand(newSummaryCommand(ctx))
	rootCmd.AddCommand(newScheduleCommand(ctx))

	return rootCmd
}
