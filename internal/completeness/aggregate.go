// Package completeness rolls the reconciliation ledger up into per-volume
// completeness figures and exports them per journal.
package completeness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"compstat/internal/metrics"
	"compstat/internal/models"

	"go.uber.org/zap"
)

var ErrNoIndexableRecords = errors.New("no indexable records in volume")

var (
	matchedKinds   = map[string]bool{"canonical": true, "partial": true, "alternate": true, "deleted": true}
	unmatchedKinds = map[string]bool{"mismatch": true, "unmatched": true}
)

type LedgerReader interface {
	Journals(ctx context.Context) ([]string, error)
	VolumeGroups(ctx context.Context, journal string) ([]models.VolumeGroup, error)
}

type SummaryStore interface {
	ReplaceSummary(ctx context.Context, rows []models.SummaryRow) error
	ListSummary(ctx context.Context) ([]models.SummaryRow, error)
}

// VolumeLabel turns the five character volume+qualifier slice of an
// identifier into a display label. The qualifier is dropped unless it is a
// digit, L or P.
func VolumeLabel(key string) string {
	if key == "" {
		return ""
	}
	last := key[len(key)-1]
	if !(last >= '0' && last <= '9') && last != 'L' && last != 'P' {
		key = key[:len(key)-1]
	}
	return strings.Trim(key, ".")
}

// Fraction returns the indexable record count and the matched share of it.
// NoIndex rows count on neither side.
func Fraction(counts []models.VolumeCount) (int, float64, error) {
	matched, unmatched := 0, 0
	for _, c := range counts {
		if c.Status == models.StatusNoIndex {
			continue
		}
		switch {
		case matchedKinds[c.MatchType]:
			matched += c.Count
		case unmatchedKinds[c.MatchType]:
			unmatched += c.Count
		}
	}
	total := matched + unmatched
	if total == 0 {
		return 0, 0, ErrNoIndexableRecords
	}
	return total, float64(matched) / float64(total), nil
}

type Aggregator struct {
	ledger  LedgerReader
	summary SummaryStore
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewAggregator(ledger LedgerReader, summary SummaryStore, logger *zap.Logger, m *metrics.Collector) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{ledger: ledger, summary: summary, logger: logger, metrics: m}
}

// Build computes summary rows for every journal in the ledger. Volumes
// with nothing indexable are logged and skipped; store errors abort.
func (a *Aggregator) Build(ctx context.Context) ([]models.SummaryRow, error) {
	journals, err := a.ledger.Journals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}
	out := make([]models.SummaryRow, 0, len(journals))
	for _, journal := range journals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		groups, err := a.ledger.VolumeGroups(ctx, journal)
		if err != nil {
			return nil, fmt.Errorf("volume groups for %q: %w", journal, err)
		}
		out = append(out, a.journalRows(journal, groups)...)
	}
	return out, nil
}

func (a *Aggregator) journalRows(journal string, groups []models.VolumeGroup) []models.SummaryRow {
	byVolume := map[string][]models.VolumeCount{}
	for _, g := range groups {
		label := VolumeLabel(g.VolumeKey)
		byVolume[label] = addCount(byVolume[label], g)
	}
	volumes := make([]string, 0, len(byVolume))
	for v := range byVolume {
		volumes = append(volumes, v)
	}
	sort.Strings(volumes)

	name := strings.TrimRight(journal, ".")
	out := make([]models.SummaryRow, 0, len(volumes))
	for _, v := range volumes {
		counts := byVolume[v]
		total, frac, err := Fraction(counts)
		if err != nil {
			a.logger.Warn("skipping volume", zap.String("journal", name), zap.String("volume", v), zap.Error(err))
			a.metrics.RecordSkippedVolume()
			continue
		}
		out = append(out, models.SummaryRow{
			Journal:          name,
			Volume:           v,
			PaperCount:       total,
			CompleteFraction: frac,
			CompleteDetails:  counts,
		})
	}
	return out
}

// addCount merges g into counts, summing tallies whose labels collapse.
func addCount(counts []models.VolumeCount, g models.VolumeGroup) []models.VolumeCount {
	for i := range counts {
		if counts[i].Status == g.Status && counts[i].MatchType == g.MatchType {
			counts[i].Count += g.Count
			return counts
		}
	}
	return append(counts, models.VolumeCount{Status: g.Status, MatchType: g.MatchType, Count: g.Count})
}

// Recompute rebuilds the whole summary table and returns the row count.
func (a *Aggregator) Recompute(ctx context.Context) (int, error) {
	start := time.Now()
	rows, err := a.Build(ctx)
	if err != nil {
		return 0, err
	}
	if err := a.summary.ReplaceSummary(ctx, rows); err != nil {
		return 0, err
	}
	a.metrics.RecordRecompute(len(rows), time.Since(start))
	a.logger.Info("completeness recomputed", zap.Int("rows", len(rows)), zap.Duration("elapsed", time.Since(start)))
	return len(rows), nil
}
