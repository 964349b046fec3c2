package completeness

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"compstat/internal/models"

	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	groups map[string][]models.VolumeGroup
	err    error
}

func (f *fakeLedger) Journals(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, 0, len(f.groups))
	for j := range f.groups {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeLedger) VolumeGroups(_ context.Context, journal string) ([]models.VolumeGroup, error) {
	return f.groups[journal], nil
}

type fakeSummary struct {
	rows     []models.SummaryRow
	replaced int
}

func (f *fakeSummary) ReplaceSummary(_ context.Context, rows []models.SummaryRow) error {
	f.rows = rows
	f.replaced++
	return nil
}

func (f *fakeSummary) ListSummary(context.Context) ([]models.SummaryRow, error) {
	return f.rows, nil
}

type memSink struct{ docs []Document }

func (m *memSink) Write(_ context.Context, doc Document) error {
	m.docs = append(m.docs, doc)
	return nil
}

func TestVolumeLabel(t *testing.T) {
	cases := map[string]string{
		"816..": "816",
		"..12L": "12L",
		"..12P": "12P",
		"1234.": "1234",
		"..123": "123",
		"..99A": "99",
		".....": "",
	}
	for in, want := range cases {
		require.Equal(t, want, VolumeLabel(in), in)
	}
}

func TestFraction(t *testing.T) {
	total, frac, err := Fraction([]models.VolumeCount{
		{Status: models.StatusMatched, MatchType: "canonical", Count: 150},
		{Status: models.StatusMatched, MatchType: "deleted", Count: 3},
		{Status: models.StatusMatched, MatchType: "mismatch", Count: 4},
		{Status: models.StatusUnmatched, MatchType: "unmatched", Count: 13},
		{Status: models.StatusNoIndex, MatchType: "other", Count: 40},
		{Status: models.StatusFailed, MatchType: "failed", Count: 7},
	})
	require.NoError(t, err)
	require.Equal(t, 170, total)
	require.InDelta(t, 0.9, frac, 1e-12)
}

func TestFractionNoIndexable(t *testing.T) {
	_, _, err := Fraction([]models.VolumeCount{{Status: models.StatusNoIndex, MatchType: "other", Count: 5}})
	require.ErrorIs(t, err, ErrNoIndexableRecords)
}

func TestRecomputeGroupsAndSkips(t *testing.T) {
	ledger := &fakeLedger{groups: map[string][]models.VolumeGroup{
		"ApJ..": {
			{VolumeKey: "816..", Status: models.StatusMatched, MatchType: "canonical", Count: 3},
			{VolumeKey: "816.E", Status: models.StatusMatched, MatchType: "canonical", Count: 1},
			{VolumeKey: "816..", Status: models.StatusUnmatched, MatchType: "unmatched", Count: 1},
			{VolumeKey: "..12L", Status: models.StatusMatched, MatchType: "partial", Count: 2},
			{VolumeKey: "817..", Status: models.StatusNoIndex, MatchType: "other", Count: 9},
		},
	}}
	summary := &fakeSummary{}
	n, err := NewAggregator(ledger, summary, nil, nil).Recompute(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 1, summary.replaced)

	require.Equal(t, "ApJ", summary.rows[0].Journal)
	require.Equal(t, "12L", summary.rows[0].Volume)
	require.Equal(t, 1.0, summary.rows[0].CompleteFraction)

	v816 := summary.rows[1]
	require.Equal(t, "816", v816.Volume)
	require.Equal(t, 5, v816.PaperCount)
	require.InDelta(t, 0.8, v816.CompleteFraction, 1e-12)
	require.Equal(t, []models.VolumeCount{
		{Status: models.StatusMatched, MatchType: "canonical", Count: 4},
		{Status: models.StatusUnmatched, MatchType: "unmatched", Count: 1},
	}, v816.CompleteDetails)
}

func TestRecomputeStoreErrorLeavesSummary(t *testing.T) {
	summary := &fakeSummary{}
	_, err := NewAggregator(&fakeLedger{err: errors.New("boom")}, summary, nil, nil).Recompute(context.Background())
	require.Error(t, err)
	require.Zero(t, summary.replaced)
}

func TestRound4(t *testing.T) {
	require.Equal(t, 0.0313, Round4(0.03125))
	require.Equal(t, 0.9, Round4(0.9))
	require.Equal(t, 0.6667, Round4(2.0/3.0))
}

func TestBuildDocumentWeightedAverage(t *testing.T) {
	doc := BuildDocument([]models.SummaryRow{
		{Journal: "MNRAS", Volume: "500", PaperCount: 10, CompleteFraction: 1},
		{Journal: "ApJ", Volume: "816", PaperCount: 30, CompleteFraction: 0.9},
		{Journal: "ApJ", Volume: "817", PaperCount: 10, CompleteFraction: 0.5},
	})
	require.Len(t, doc, 2)
	require.Equal(t, "ApJ", doc[0].Journal)
	require.Equal(t, 0.8, doc[0].Fraction)
	require.Equal(t, []VolumeDetail{{Volume: "816", Fraction: 0.9}, {Volume: "817", Fraction: 0.5}}, doc[0].Details)
	require.Equal(t, 1.0, doc[1].Fraction)
}

func TestExport(t *testing.T) {
	summary := &fakeSummary{rows: []models.SummaryRow{
		{Journal: "ApJ", Volume: "816", PaperCount: 3, CompleteFraction: 2.0 / 3.0},
	}}
	agg := NewAggregator(&fakeLedger{}, summary, nil, nil)

	_, err := agg.Export(context.Background())
	require.ErrorIs(t, err, ErrMissingExportPath)

	sink := &memSink{}
	doc, err := agg.Export(context.Background(), sink)
	require.NoError(t, err)
	require.Len(t, sink.docs, 1)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.JSONEq(t, `[{"bibstem":"ApJ","completeness_fraction":0.6667,
		"completeness_details":[{"volume":"816","completeness_fraction":0.6667}]}]`, string(raw))

	var back Document
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, doc[0].Journal, back[0].Journal)
	require.InDelta(t, doc[0].Fraction, back[0].Fraction, 1e-4)
	require.Len(t, back[0].Details, len(doc[0].Details))
}
