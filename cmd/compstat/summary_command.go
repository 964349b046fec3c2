package main

import (
	"fmt"
	"strconv"

	"compstat/internal/completeness"
	"compstat/internal/models"
	"compstat/internal/storage"

	"github.com/spf13/cobra"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	var journal string
	var asJSON bool
	var byJournal bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the stored completeness summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDB(cmd.Context(), func(db *storage.DB) error {
				rows, err := storage.NewSummaryRepo(db).ListSummary(cmd.Context())
				if err != nil {
					return err
				}
				rows = filterJournal(rows, journal)
				if byJournal {
					doc := completeness.BuildDocument(rows)
					if asJSON {
						return writeJSON(cmd, doc)
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderDocument(doc))
					return nil
				}
				if asJSON {
					return writeJSON(cmd, rows)
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No summary rows; run compstat completeness first")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(rows))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&journal, "journal", "", "Only show this journal code")
	cmd.Flags().BoolVar(&byJournal, "by-journal", false, "Aggregate volumes per journal")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func filterJournal(rows []models.SummaryRow, journal string) []models.SummaryRow {
	if journal == "" {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if r.Journal == journal {
			out = append(out, r)
		}
	}
	return out
}

func renderSummary(rows []models.SummaryRow) string {
	body := make([][]string, 0, len(rows))
	for _, r := range rows {
		body = append(body, []string{
			r.Journal,
			r.Volume,
			strconv.Itoa(r.PaperCount),
			formatFraction(r.CompleteFraction),
		})
	}
	return renderTable([]string{"Journal", "Volume", "Papers", "Complete"}, body, 3, 4)
}

func renderDocument(doc completeness.Document) string {
	body := make([][]string, 0, len(doc))
	for _, j := range doc {
		body = append(body, []string{j.Journal, strconv.Itoa(len(j.Details)), formatFraction(j.Fraction)})
	}
	return renderTable([]string{"Journal", "Volumes", "Complete"}, body, 2, 3)
}

func formatFraction(f float64) string {
	return strconv.FormatFloat(completeness.Round4(f)*100, 'f', 2, 64) + "%"
}
