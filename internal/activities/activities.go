package activities

import (
	"context"
	"errors"
	"fmt"

	"compstat/internal/classic"
	"compstat/internal/completeness"
	"compstat/internal/config"
	"compstat/internal/export"
	"compstat/internal/harvest"
	"compstat/internal/match"
	"compstat/internal/metrics"
	"compstat/internal/reconcile"
	"compstat/internal/storage"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

const errTypeConfig = "ConfigError"

// Ledger is the ledger surface the activities write and query.
type Ledger interface {
	reconcile.LedgerWriter
	RetryFilepaths(ctx context.Context, matchTypes []string) ([]string, error)
}

type ReferenceStore interface {
	ReplaceReference(ctx context.Context, snap classic.Snapshot) error
}

type Activities struct {
	cfg        config.Config
	logger     *zap.Logger
	metrics    *metrics.Collector
	ledger     Ledger
	reference  ReferenceStore
	driver     *reconcile.Driver
	aggregator *completeness.Aggregator
	loader     *classic.Loader
}

func New(cfg config.Config, db *storage.DB, logger *zap.Logger, m *metrics.Collector) (*Activities, error) {
	relations := match.NewRelations(nil)
	if cfg.RelatedJournals != "" {
		r, err := match.LoadRelations(cfg.RelatedJournals)
		if err != nil {
			return nil, err
		}
		relations = r
	}
	classicRepo := storage.NewClassicRepo(db)
	ledger := storage.NewLedgerRepo(db)
	return NewWithDependencies(cfg, logger, m,
		ledger,
		classicRepo,
		reconcile.NewDriver(classicRepo, match.NewMatcher(relations, logger), logger, m),
		completeness.NewAggregator(ledger, storage.NewSummaryRepo(db), logger, m),
	), nil
}

func NewWithDependencies(cfg config.Config, logger *zap.Logger, m *metrics.Collector, ledger Ledger,
	reference ReferenceStore, driver *reconcile.Driver, aggregator *completeness.Aggregator) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		ledger:     ledger,
		reference:  reference,
		driver:     driver,
		aggregator: aggregator,
		loader:     classic.NewLoader(logger),
	}
}

func (a *Activities) ListHarvestLogsActivity(ctx context.Context, in ListHarvestLogsInput) (ListHarvestLogsOutput, error) {
	_ = ctx
	dir := in.LogDir
	if dir == "" {
		dir = a.cfg.HarvestLogDir
	}
	logs, err := harvest.FindLogs(dir)
	if err != nil {
		return ListHarvestLogsOutput{}, err
	}
	selected, err := harvest.SelectLogs(logs, in.Publisher, in.Latest)
	if errors.Is(err, harvest.ErrNoLogs) {
		return ListHarvestLogsOutput{Logs: []string{}}, nil
	}
	if errors.Is(err, harvest.ErrUnknownPublisher) {
		return ListHarvestLogsOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "UnknownPublisher", err)
	}
	if err != nil {
		return ListHarvestLogsOutput{}, err
	}
	return ListHarvestLogsOutput{Logs: selected}, nil
}

func (a *Activities) ReadHarvestLogActivity(ctx context.Context, in ReadHarvestLogInput) (ReadHarvestLogOutput, error) {
	_ = ctx
	rel, err := harvest.ReadLog(in.LogPath)
	if err != nil {
		return ReadHarvestLogOutput{}, err
	}
	return ReadHarvestLogOutput{Files: harvest.ResolvePaths(a.cfg.HarvestBaseDir, rel)}, nil
}

// ReconcileFileActivity never fails: every outcome, including input
// defects, is a ledger row.
func (a *Activities) ReconcileFileActivity(ctx context.Context, in ReconcileFileInput) (ReconcileFileOutput, error) {
	return ReconcileFileOutput{Row: a.driver.ReconcileFile(ctx, in.Path)}, nil
}

func (a *Activities) WriteLedgerRowActivity(ctx context.Context, in WriteLedgerRowInput) error {
	if err := a.ledger.UpsertLedgerRow(ctx, in.Row); err != nil {
		a.metrics.RecordLedgerWriteError()
		a.logger.Warn("ledger write failed", zap.String("file", in.Row.HarvestFilepath), zap.Error(err))
		return err
	}
	a.metrics.RecordLedgerOutcome(string(in.Row.Status), in.Row.MatchType)
	return nil
}

func (a *Activities) ListRetryFilesActivity(ctx context.Context, in ListRetryFilesInput) (ListRetryFilesOutput, error) {
	files, err := a.ledger.RetryFilepaths(ctx, in.MatchTypes)
	if err != nil {
		return ListRetryFilesOutput{}, err
	}
	return ListRetryFilesOutput{Files: files}, nil
}

// LoadClassicActivity reloads the reference tables from the configured
// snapshot files.
func (a *Activities) LoadClassicActivity(ctx context.Context) (LoadClassicOutput, error) {
	snap, err := a.loader.LoadSnapshot(a.cfg.ClassicPaths())
	if errors.Is(err, classic.ErrMissingReferenceFile) {
		return LoadClassicOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeConfig, err)
	}
	if err != nil {
		return LoadClassicOutput{}, err
	}
	if err := a.reference.ReplaceReference(ctx, snap); err != nil {
		return LoadClassicOutput{}, err
	}
	a.logger.Info("classic reference reloaded",
		zap.Int("dois", len(snap.DOIs)), zap.Int("issns", len(snap.ISSNs)), zap.Int("identifiers", len(snap.Identifiers)))
	return LoadClassicOutput{DOIs: len(snap.DOIs), ISSNs: len(snap.ISSNs), Identifiers: len(snap.Identifiers)}, nil
}

func (a *Activities) RecomputeCompletenessActivity(ctx context.Context) (RecomputeCompletenessOutput, error) {
	n, err := a.aggregator.Recompute(ctx)
	if errors.Is(err, storage.ErrRecomputeInProgress) {
		return RecomputeCompletenessOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "RecomputeInProgress", err)
	}
	if err != nil {
		return RecomputeCompletenessOutput{}, err
	}
	return RecomputeCompletenessOutput{Rows: n}, nil
}

func (a *Activities) ExportCompletenessActivity(ctx context.Context, in ExportCompletenessInput) (ExportCompletenessOutput, error) {
	targets := in.Targets
	if len(targets) == 0 {
		targets = a.cfg.ExportTargets()
	}
	sinks, err := export.Sinks(ctx, targets, a.cfg.S3(), a.logger)
	if err != nil {
		return ExportCompletenessOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeConfig, err)
	}
	doc, err := a.aggregator.Export(ctx, sinks...)
	if errors.Is(err, completeness.ErrMissingExportPath) {
		return ExportCompletenessOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeConfig, err)
	}
	if err != nil {
		return ExportCompletenessOutput{}, fmt.Errorf("export completeness: %w", err)
	}
	return ExportCompletenessOutput{Journals: len(doc)}, nil
}
