package storage

import (
	"context"
	"fmt"

	"compstat/internal/models"

	"github.com/jackc/pgx/v5"
)

type SummaryRepo struct {
	db *DB
}

func NewSummaryRepo(db *DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

// ReplaceSummary clears the summary table and writes rows in a single
// transaction. Only one caller may hold the rewrite at a time; the others
// get ErrRecomputeInProgress.
func (r *SummaryRepo) ReplaceSummary(ctx context.Context, rows []models.SummaryRow) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace summary: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var locked bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, summaryLockKey).Scan(&locked); err != nil {
		return fmt.Errorf("lock summary: %w", err)
	}
	if !locked {
		return ErrRecomputeInProgress
	}

	if _, err := tx.Exec(ctx, `DELETE FROM summary`); err != nil {
		return fmt.Errorf("clear summary: %w", err)
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"summary"},
		[]string{"bibstem", "volume", "paper_count", "complete_fraction", "complete_details"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			s := rows[i]
			details := s.CompleteDetails
			if details == nil {
				details = []models.VolumeCount{}
			}
			return []any{s.Journal, s.Volume, s.PaperCount, s.CompleteFraction, details}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy summary: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit summary tx: %w", err)
	}
	return nil
}

// ListSummary returns every summary row ordered by journal then volume.
func (r *SummaryRepo) ListSummary(ctx context.Context) ([]models.SummaryRow, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT summaryid, bibstem, volume, paper_count, COALESCE(complete_fraction, 0), complete_details, created
FROM summary
ORDER BY bibstem, volume`)
	if err != nil {
		return nil, fmt.Errorf("list summary: %w", err)
	}
	defer rows.Close()

	out := make([]models.SummaryRow, 0)
	for rows.Next() {
		var s models.SummaryRow
		if err := rows.Scan(&s.ID, &s.Journal, &s.Volume, &s.PaperCount, &s.CompleteFraction, &s.CompleteDetails, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return out, nil
}
