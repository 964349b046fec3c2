package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COMPLETENESS_EXPORT_FILE", "")
	t.Setenv("COMPLETENESS_EXPORT_PARQUET", "")
	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, 250, c.RecordsPerBatch)
	require.Equal(t, 4, c.MaxBatches)
	require.Equal(t, "compstat", c.TemporalTaskQueue)
	require.Empty(t, c.ExportTargets())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RECORDS_PER_BATCH", "100")
	t.Setenv("COMPLETENESS_EXPORT_FILE", "/out/completeness.json")
	t.Setenv("COMPLETENESS_EXPORT_PARQUET", "s3://reports/completeness.parquet")
	t.Setenv("CLASSIC_DOI_FILE", "/classic/dois")
	t.Setenv("S3_KEY", "k")
	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, 100, c.RecordsPerBatch)
	require.Equal(t, []string{"/out/completeness.json", "s3://reports/completeness.parquet"}, c.ExportTargets())
	require.Equal(t, "/classic/dois", c.ClassicPaths().DOIs)
	require.Equal(t, "k", c.S3().Key)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_BATCHES", "many")
	_, err := Load()
	require.Error(t, err)
}
