package storage

import (
	"context"
	"errors"
	"fmt"

	"compstat/internal/classic"
	"compstat/internal/match"

	"github.com/jackc/pgx/v5"
)

// ClassicRepo serves the reference tables loaded from the classic catalog.
type ClassicRepo struct {
	db *DB
}

func NewClassicRepo(db *DB) *ClassicRepo {
	return &ClassicRepo{db: db}
}

// JournalByISSN resolves a journal code; ok is false when the ISSN is unknown.
func (r *ClassicRepo) JournalByISSN(ctx context.Context, issn string) (string, bool, error) {
	var journal string
	err := r.db.Pool.QueryRow(ctx, `SELECT bibstem FROM issn_bibstem WHERE issn=$1 LIMIT 1`, issn).Scan(&journal)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query journal by issn: %w", err)
	}
	return journal, true, nil
}

// CandidatesByDOI returns every classic identifier sharing a canonical form
// with the identifier assigned to doi, canonical entries first.
func (r *ClassicRepo) CandidatesByDOI(ctx context.Context, doi string) ([]match.Candidate, error) {
	return r.candidates(ctx, `
SELECT a.identifier, a.canonical_id, a.idtype
FROM alt_identifiers a
JOIN identifier_doi d ON a.canonical_id = d.identifier
WHERE d.doi = $1
ORDER BY (a.idtype = 'canonical') DESC, a.identifier`, doi)
}

func (r *ClassicRepo) CandidatesByIdentifier(ctx context.Context, identifier string) ([]match.Candidate, error) {
	if identifier == "" {
		return nil, nil
	}
	return r.candidates(ctx, `
SELECT identifier, canonical_id, idtype
FROM alt_identifiers
WHERE identifier = $1`, identifier)
}

func (r *ClassicRepo) candidates(ctx context.Context, sql, arg string) ([]match.Candidate, error) {
	rows, err := r.db.Pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("query classic candidates: %w", err)
	}
	defer rows.Close()

	out := make([]match.Candidate, 0)
	for rows.Next() {
		var c match.Candidate
		var kind string
		if err := rows.Scan(&c.Identifier, &c.Canonical, &kind); err != nil {
			return nil, fmt.Errorf("scan classic candidate: %w", err)
		}
		c.Kind = match.Kind(kind)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classic candidates: %w", err)
	}
	return out, nil
}

// ReplaceReference swaps all three reference tables for snap in one
// transaction.
func (r *ClassicRepo) ReplaceReference(ctx context.Context, snap classic.Snapshot) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace reference: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM identifier_doi; DELETE FROM alt_identifiers; DELETE FROM issn_bibstem`); err != nil {
		return fmt.Errorf("clear reference tables: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"identifier_doi"}, []string{"identifier", "doi"},
		pgx.CopyFromSlice(len(snap.DOIs), func(i int) ([]any, error) {
			return []any{snap.DOIs[i].Identifier, snap.DOIs[i].DOI}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy identifier_doi: %w", err)
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"alt_identifiers"}, []string{"identifier", "canonical_id", "idtype"},
		pgx.CopyFromSlice(len(snap.Identifiers), func(i int) ([]any, error) {
			rec := snap.Identifiers[i]
			return []any{rec.Identifier, rec.Canonical, string(rec.Kind)}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy alt_identifiers: %w", err)
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"issn_bibstem"}, []string{"issn", "bibstem", "issn_type"},
		pgx.CopyFromSlice(len(snap.ISSNs), func(i int) ([]any, error) {
			rec := snap.ISSNs[i]
			return []any{rec.ISSN, rec.Journal, rec.ISSNType}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy issn_bibstem: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reference tx: %w", err)
	}
	return nil
}
