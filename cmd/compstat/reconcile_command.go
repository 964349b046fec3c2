package main

import (
	"fmt"

	"compstat/internal/match"
	"compstat/internal/models"
	"compstat/internal/reconcile"
	"compstat/internal/storage"

	"github.com/spf13/cobra"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "reconcile <metadata-file>...",
		Short: "Reconcile metadata files locally without Temporal",
		Long:  "Reconcile metadata files against the loaded classic reference tables and print the ledger rows. With --write the rows are also upserted.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			relations := match.NewRelations(nil)
			if cfg.RelatedJournals != "" {
				if relations, err = match.LoadRelations(cfg.RelatedJournals); err != nil {
					return err
				}
			}
			logger := ctx.log()
			return ctx.withDB(cmd.Context(), func(db *storage.DB) error {
				driver := reconcile.NewDriver(storage.NewClassicRepo(db), match.NewMatcher(relations, logger), logger, nil)
				ledger := storage.NewLedgerRepo(db)
				rows := make([]models.LedgerRow, 0, len(args))
				for _, path := range args {
					if !write {
						rows = append(rows, driver.ReconcileFile(cmd.Context(), path))
						continue
					}
					row, err := driver.Process(cmd.Context(), ledger, path)
					if err != nil {
						return fmt.Errorf("write %s: %w", path, err)
					}
					rows = append(rows, row)
				}
				return writeJSON(cmd, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Upsert the resulting rows into the ledger")
	return cmd
}
