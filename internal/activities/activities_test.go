package activities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"compstat/internal/classic"
	"compstat/internal/completeness"
	"compstat/internal/config"
	"compstat/internal/match"
	"compstat/internal/models"
	"compstat/internal/reconcile"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
)

type memLedger struct {
	rows  []models.LedgerRow
	retry []string
	err   error
}

func (m *memLedger) UpsertLedgerRow(_ context.Context, row models.LedgerRow) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *memLedger) RetryFilepaths(_ context.Context, _ []string) ([]string, error) {
	return m.retry, nil
}

type memReference struct{ snap classic.Snapshot }

func (m *memReference) ReplaceReference(_ context.Context, snap classic.Snapshot) error {
	m.snap = snap
	return nil
}

type noClassic struct{}

func (noClassic) JournalByISSN(context.Context, string) (string, bool, error) { return "", false, nil }
func (noClassic) CandidatesByDOI(context.Context, string) ([]match.Candidate, error) {
	return nil, nil
}
func (noClassic) CandidatesByIdentifier(context.Context, string) ([]match.Candidate, error) {
	return nil, nil
}

type emptySummary struct{}

func (emptySummary) ReplaceSummary(context.Context, []models.SummaryRow) error { return nil }
func (emptySummary) ListSummary(context.Context) ([]models.SummaryRow, error) {
	return []models.SummaryRow{{Journal: "ApJ", Volume: "816", PaperCount: 2, CompleteFraction: 0.5}}, nil
}

type emptyLedgerReader struct{}

func (emptyLedgerReader) Journals(context.Context) ([]string, error) { return nil, nil }
func (emptyLedgerReader) VolumeGroups(context.Context, string) ([]models.VolumeGroup, error) {
	return nil, nil
}

func newTestActivities(cfg config.Config, ledger *memLedger, ref *memReference) *Activities {
	driver := reconcile.NewDriver(noClassic{}, match.NewMatcher(match.NewRelations(nil), nil), nil, nil)
	agg := completeness.NewAggregator(emptyLedgerReader{}, emptySummary{}, nil, nil)
	return NewWithDependencies(cfg, nil, nil, ledger, ref, driver, agg)
}

func TestHarvestLogActivities(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "10.3847:4879.out.2023-08-25")
	require.NoError(t, os.WriteFile(log, []byte("doi/a/metadata.xml\t2023-08-25T00:00:00\n"), 0o644))

	a := newTestActivities(config.Config{HarvestLogDir: dir, HarvestBaseDir: "/sources"}, &memLedger{}, &memReference{})
	logs, err := a.ListHarvestLogsActivity(context.Background(), ListHarvestLogsInput{Latest: true})
	require.NoError(t, err)
	require.Equal(t, []string{log}, logs.Logs)

	files, err := a.ReadHarvestLogActivity(context.Background(), ReadHarvestLogInput{LogPath: log})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join("/sources", "doi/a/metadata.xml")}, files.Files)

	_, err = a.ListHarvestLogsActivity(context.Background(), ListHarvestLogsInput{Publisher: "10.0000"})
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.True(t, appErr.NonRetryable())
}

func TestReconcileAndWriteActivities(t *testing.T) {
	ledger := &memLedger{}
	a := newTestActivities(config.Config{}, ledger, &memReference{})

	out, err := a.ReconcileFileActivity(context.Background(), ReconcileFileInput{Path: "/missing/metadata.xml"})
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, out.Row.Status)

	require.NoError(t, a.WriteLedgerRowActivity(context.Background(), WriteLedgerRowInput{Row: out.Row}))
	require.Len(t, ledger.rows, 1)

	ledger.err = errors.New("db down")
	require.Error(t, a.WriteLedgerRowActivity(context.Background(), WriteLedgerRowInput{Row: out.Row}))
}

func TestLoadClassicActivityConfigError(t *testing.T) {
	a := newTestActivities(config.Config{}, &memLedger{}, &memReference{})
	_, err := a.LoadClassicActivity(context.Background())
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.True(t, appErr.NonRetryable())
}

func TestLoadClassicActivity(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	cfg := config.Config{
		ClassicDOIFile:   write("dois", "2016ApJ...816...36S\t10.3847/a\n"),
		ISSNJournalFile:  write("issn", "ApJ\tprint\t0004-637X\n"),
		ClassicCanonical: write("can", "2016ApJ...816...36S\n"),
		ClassicAltBibs:   write("alt", ""),
		ClassicDelBibs:   write("del", ""),
		ClassicAllBibs:   write("all", ""),
	}
	ref := &memReference{}
	out, err := newTestActivities(cfg, &memLedger{}, ref).LoadClassicActivity(context.Background())
	require.NoError(t, err)
	require.Equal(t, LoadClassicOutput{DOIs: 1, ISSNs: 1, Identifiers: 1}, out)
	require.Len(t, ref.snap.DOIs, 1)
}

func TestExportCompletenessActivity(t *testing.T) {
	a := newTestActivities(config.Config{}, &memLedger{}, &memReference{})
	_, err := a.ExportCompletenessActivity(context.Background(), ExportCompletenessInput{})
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)

	path := filepath.Join(t.TempDir(), "completeness.json")
	out, err := a.ExportCompletenessActivity(context.Background(), ExportCompletenessInput{Targets: []string{path}})
	require.NoError(t, err)
	require.Equal(t, 1, out.Journals)
	require.FileExists(t, path)
}

func TestRetryFilesActivity(t *testing.T) {
	a := newTestActivities(config.Config{}, &memLedger{retry: []string{"/a.xml"}}, &memReference{})
	out, err := a.ListRetryFilesActivity(context.Background(), ListRetryFilesInput{MatchTypes: []string{"failed"}})
	require.NoError(t, err)
	require.Equal(t, []string{"/a.xml"}, out.Files)
}
