package completeness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"compstat/internal/models"

	"go.uber.org/zap"
)

var ErrMissingExportPath = errors.New("completeness export path not configured")

type VolumeDetail struct {
	Volume   string  `json:"volume"`
	Fraction float64 `json:"completeness_fraction"`
}

type JournalCompleteness struct {
	Journal  string         `json:"bibstem"`
	Fraction float64        `json:"completeness_fraction"`
	Details  []VolumeDetail `json:"completeness_details"`
}

// Document is the exported completeness report, one entry per journal.
type Document []JournalCompleteness

// Sink receives a finished document.
type Sink interface {
	Write(ctx context.Context, doc Document) error
}

// Round4 rounds half up to four decimal places.
func Round4(x float64) float64 {
	return math.Floor(1e4*x+0.5) / 1e4
}

// Export builds the document from the stored summary and hands it to every
// sink. At least one sink is required.
func (a *Aggregator) Export(ctx context.Context, sinks ...Sink) (Document, error) {
	if len(sinks) == 0 {
		return nil, ErrMissingExportPath
	}
	rows, err := a.summary.ListSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("list summary: %w", err)
	}
	doc := BuildDocument(rows)
	for _, s := range sinks {
		if err := s.Write(ctx, doc); err != nil {
			return nil, err
		}
	}
	a.metrics.RecordExport(len(doc))
	a.logger.Info("completeness exported", zap.Int("journals", len(doc)), zap.Int("sinks", len(sinks)))
	return doc, nil
}

// BuildDocument groups summary rows by journal. A journal's fraction is the
// paper-count weighted mean of its volumes.
func BuildDocument(rows []models.SummaryRow) Document {
	byJournal := map[string][]models.SummaryRow{}
	for _, r := range rows {
		byJournal[r.Journal] = append(byJournal[r.Journal], r)
	}
	journals := make([]string, 0, len(byJournal))
	for j := range byJournal {
		journals = append(journals, j)
	}
	sort.Strings(journals)

	doc := make(Document, 0, len(journals))
	for _, j := range journals {
		entry := JournalCompleteness{Journal: j, Details: make([]VolumeDetail, 0, len(byJournal[j]))}
		papers, weighted := 0, 0.0
		for _, r := range byJournal[j] {
			entry.Details = append(entry.Details, VolumeDetail{Volume: r.Volume, Fraction: Round4(r.CompleteFraction)})
			papers += r.PaperCount
			weighted += float64(r.PaperCount) * r.CompleteFraction
		}
		if papers > 0 {
			entry.Fraction = Round4(weighted / float64(papers))
		}
		doc = append(doc, entry)
	}
	return doc
}
