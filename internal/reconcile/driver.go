// Package reconcile turns harvested metadata files into ledger rows: it
// resolves the journal, generates an identifier, looks up classic
// candidates and records the matcher's verdict.
package reconcile

import (
	"context"
	"fmt"

	"compstat/internal/bibcode"
	"compstat/internal/crossref"
	"compstat/internal/match"
	"compstat/internal/metrics"
	"compstat/internal/models"

	"go.uber.org/zap"
)

const (
	NoteNoDOI    = "No DOI found"
	NoteNoRecord = "No record found in metadata file"
)

// ClassicLookup is the read side of the classic reference tables.
type ClassicLookup interface {
	JournalByISSN(ctx context.Context, issn string) (string, bool, error)
	CandidatesByDOI(ctx context.Context, doi string) ([]match.Candidate, error)
	CandidatesByIdentifier(ctx context.Context, identifier string) ([]match.Candidate, error)
}

// Matcher returns nil when it has no verdict for the identifier.
type Matcher interface {
	Match(candidate string, byDOI, byIdentifier []match.Candidate) *match.Verdict
}

type LedgerWriter interface {
	UpsertLedgerRow(ctx context.Context, row models.LedgerRow) error
}

type Driver struct {
	classic ClassicLookup
	matcher Matcher
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewDriver(classic ClassicLookup, matcher Matcher, logger *zap.Logger, m *metrics.Collector) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{classic: classic, matcher: matcher, logger: logger, metrics: m}
}

// ReconcileFile parses path and reconciles it. It always returns a row;
// parse failures come back as Failed rows.
func (d *Driver) ReconcileFile(ctx context.Context, path string) models.LedgerRow {
	rec, err := crossref.ParseFile(path)
	if err != nil {
		d.logger.Warn("parsing failed", zap.String("file", path), zap.Error(err))
		return FailedFileRow(path, err.Error())
	}
	if rec == nil {
		return FailedFileRow(path, NoteNoRecord)
	}
	return d.Reconcile(ctx, rec)
}

// Reconcile produces the ledger outcome for one parsed record. Input
// defects and lookup failures degrade to Failed rows.
func (d *Driver) Reconcile(ctx context.Context, rec *crossref.Record) models.LedgerRow {
	if rec.DOI == "" {
		return failedRow(rec, NoteNoDOI)
	}

	journal, err := d.resolveJournal(ctx, rec)
	if err != nil {
		d.logger.Warn("journal lookup failed", zap.String("doi", rec.DOI), zap.Error(err))
		return failedRow(rec, err.Error())
	}
	id, err := bibcode.Generate(rec.Fields(), journal)
	if err != nil {
		return failedRow(rec, fmt.Sprintf("identifier generation failed: %v", err))
	}

	byDOI, err := d.classic.CandidatesByDOI(ctx, rec.DOI)
	if err != nil {
		d.logger.Warn("classic lookup by DOI failed", zap.String("doi", rec.DOI), zap.Error(err))
		return failedRow(rec, err.Error())
	}
	byID, err := d.classic.CandidatesByIdentifier(ctx, id.String())
	if err != nil {
		d.logger.Warn("classic lookup by identifier failed", zap.String("identifier", id.String()), zap.Error(err))
		return failedRow(rec, err.Error())
	}

	row := baseRow(rec)
	row.Identifier = id.String()
	verdict := d.matcher.Match(id.String(), byDOI, byID)
	if verdict == nil {
		row.Status = models.StatusNoIndex
		row.MatchType = string(match.KindOther)
		row.Discrepancies = map[string]string{}
		return row
	}
	row.Status = StatusFor(verdict.Kind)
	row.MatchType = string(verdict.Kind)
	row.ClassicIdentifier = verdict.Identifier
	row.Discrepancies = verdict.Discrepancies
	return row
}

// Process reconciles path and writes the outcome. Only the write can fail.
func (d *Driver) Process(ctx context.Context, w LedgerWriter, path string) (models.LedgerRow, error) {
	row := d.ReconcileFile(ctx, path)
	if err := w.UpsertLedgerRow(ctx, row); err != nil {
		d.metrics.RecordLedgerWriteError()
		return row, err
	}
	d.metrics.RecordLedgerOutcome(string(row.Status), row.MatchType)
	return row, nil
}

// StatusFor maps a verdict kind to its ledger status.
func StatusFor(kind match.Kind) models.Status {
	switch kind {
	case match.KindUnmatched:
		return models.StatusUnmatched
	case match.KindFailed:
		return models.StatusFailed
	default:
		return models.StatusMatched
	}
}

// resolveJournal returns "" when none of the record's ISSNs is known.
func (d *Driver) resolveJournal(ctx context.Context, rec *crossref.Record) (string, error) {
	for _, issn := range rec.ISSNCandidates() {
		journal, ok, err := d.classic.JournalByISSN(ctx, issn)
		if err != nil {
			return "", err
		}
		if ok {
			return journal, nil
		}
	}
	return "", nil
}

func baseRow(rec *crossref.Record) models.LedgerRow {
	issns := make(map[string]string, len(rec.ISSNs))
	for k, v := range rec.ISSNs {
		issns[k] = v
	}
	return models.LedgerRow{
		HarvestFilepath: rec.SourcePath,
		DOI:             rec.DOI,
		ISSNs:           issns,
		BibData:         rec.BibData(),
	}
}

// FailedFileRow is the ledger outcome for a file that could not be
// reconciled at all.
func FailedFileRow(path, note string) models.LedgerRow {
	return failedRow(&crossref.Record{SourcePath: path}, note)
}

func failedRow(rec *crossref.Record, note string) models.LedgerRow {
	row := baseRow(rec)
	if rec.DOI == "" && rec.Journal == "" && rec.Year == "" {
		row.BibData = map[string]any{}
	}
	row.Discrepancies = map[string]string{}
	row.Status = models.StatusFailed
	row.MatchType = string(match.KindFailed)
	row.Notes = note
	return row
}
