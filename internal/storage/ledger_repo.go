package storage

import (
	"context"
	"errors"
	"fmt"

	"compstat/internal/models"

	"github.com/jackc/pgx/v5"
)

type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

const ledgerColumns = `masterid, harvest_filepath, COALESCE(master_doi,''), issns, master_bibdata, classic_match,
       status, matchtype, COALESCE(bibcode_meta,''), COALESCE(bibcode_classic,''), COALESCE(notes,''), created, updated`

const upsertByDOISQL = `
WITH upserted AS (
  INSERT INTO master (harvest_filepath, master_doi, issns, master_bibdata, classic_match, status, matchtype,
                      bibcode_meta, bibcode_classic, notes)
  VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), NULLIF($9,''), NULLIF($10,''))
  ON CONFLICT (master_doi)
  DO UPDATE SET
    harvest_filepath = EXCLUDED.harvest_filepath,
    issns = EXCLUDED.issns,
    master_bibdata = EXCLUDED.master_bibdata,
    classic_match = EXCLUDED.classic_match,
    status = EXCLUDED.status,
    matchtype = EXCLUDED.matchtype,
    bibcode_meta = EXCLUDED.bibcode_meta,
    bibcode_classic = EXCLUDED.bibcode_classic,
    notes = EXCLUDED.notes,
    updated = NOW()
  RETURNING harvest_filepath
)
DELETE FROM master
WHERE master_doi IS NULL
  AND harvest_filepath IN (SELECT harvest_filepath FROM upserted)`

const upsertByFilepathSQL = `
INSERT INTO master (harvest_filepath, master_doi, issns, master_bibdata, classic_match, status, matchtype,
                    bibcode_meta, bibcode_classic, notes)
VALUES ($1, NULL, $2, $3, $4, $5, $6, NULLIF($7,''), NULLIF($8,''), NULLIF($9,''))
ON CONFLICT (harvest_filepath) WHERE master_doi IS NULL
DO UPDATE SET
  issns = EXCLUDED.issns,
  master_bibdata = EXCLUDED.master_bibdata,
  classic_match = EXCLUDED.classic_match,
  status = EXCLUDED.status,
  matchtype = EXCLUDED.matchtype,
  bibcode_meta = EXCLUDED.bibcode_meta,
  bibcode_classic = EXCLUDED.bibcode_classic,
  notes = EXCLUDED.notes,
  updated = NOW()`

// UpsertLedgerRow writes one outcome. Rows with a DOI are keyed on the DOI;
// rows without one (parse failures) are keyed on their source file. Once a
// file yields a DOI, its earlier file-keyed row is removed in the same
// statement so each file keeps a single outcome.
func (r *LedgerRepo) UpsertLedgerRow(ctx context.Context, row models.LedgerRow) error {
	issns, bib, errs := jsonMap(row.ISSNs), jsonAny(row.BibData), jsonMap(row.Discrepancies)
	var err error
	if row.DOI != "" {
		_, err = r.db.Pool.Exec(ctx, upsertByDOISQL,
			row.HarvestFilepath, row.DOI, issns, bib, errs, string(row.Status), row.MatchType,
			row.Identifier, row.ClassicIdentifier, row.Notes,
		)
	} else {
		_, err = r.db.Pool.Exec(ctx, upsertByFilepathSQL,
			row.HarvestFilepath, issns, bib, errs, string(row.Status), row.MatchType,
			row.Identifier, row.ClassicIdentifier, row.Notes,
		)
	}
	if err != nil {
		return fmt.Errorf("upsert ledger row: %w", err)
	}
	return nil
}

// GetByDOI returns the ledger row for doi; ok is false when none exists.
func (r *LedgerRepo) GetByDOI(ctx context.Context, doi string) (models.LedgerRow, bool, error) {
	row, err := scanLedgerRow(r.db.Pool.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM master WHERE master_doi=$1`, doi))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.LedgerRow{}, false, nil
	}
	if err != nil {
		return models.LedgerRow{}, false, fmt.Errorf("get ledger row: %w", err)
	}
	return row, true, nil
}

// RetryFilepaths lists the source files of rows with one of the given
// match types.
func (r *LedgerRepo) RetryFilepaths(ctx context.Context, matchTypes []string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT harvest_filepath FROM master
WHERE matchtype = ANY($1)
ORDER BY harvest_filepath`, matchTypes)
	if err != nil {
		return nil, fmt.Errorf("list retry files: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect retry files: %w", err)
	}
	return out, nil
}

// Journals lists the distinct journal codes found in generated identifiers.
func (r *LedgerRepo) Journals(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT DISTINCT substr(bibcode_meta, 5, 5) FROM master
WHERE length(bibcode_meta) = 19
ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list ledger journals: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect ledger journals: %w", err)
	}
	return out, nil
}

// VolumeGroups counts ledger rows of one padded journal code by raw volume
// key, status and match type.
func (r *LedgerRepo) VolumeGroups(ctx context.Context, journal string) ([]models.VolumeGroup, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT substr(bibcode_meta, 10, 5), status, matchtype, count(*)
FROM master
WHERE substr(bibcode_meta, 5, 5) = $1 AND length(bibcode_meta) = 19
GROUP BY 1, 2, 3
ORDER BY 1, 2, 3`, journal)
	if err != nil {
		return nil, fmt.Errorf("query volume groups: %w", err)
	}
	defer rows.Close()

	out := make([]models.VolumeGroup, 0)
	for rows.Next() {
		var g models.VolumeGroup
		var status string
		if err := rows.Scan(&g.VolumeKey, &status, &g.MatchType, &g.Count); err != nil {
			return nil, fmt.Errorf("scan volume group: %w", err)
		}
		g.Status = models.Status(status)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volume groups: %w", err)
	}
	return out, nil
}

// CountByStatus tallies the whole ledger.
func (r *LedgerRepo) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT status, count(*) FROM master GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count ledger: %w", err)
	}
	defer rows.Close()

	out := map[models.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan ledger count: %w", err)
		}
		out[models.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger counts: %w", err)
	}
	return out, nil
}

func scanLedgerRow(row pgx.Row) (models.LedgerRow, error) {
	var out models.LedgerRow
	var status string
	err := row.Scan(&out.ID, &out.HarvestFilepath, &out.DOI, &out.ISSNs, &out.BibData, &out.Discrepancies,
		&status, &out.MatchType, &out.Identifier, &out.ClassicIdentifier, &out.Notes, &out.CreatedAt, &out.UpdatedAt)
	out.Status = models.Status(status)
	return out, err
}

func jsonMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func jsonAny(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
