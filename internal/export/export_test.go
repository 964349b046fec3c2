package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"compstat/internal/completeness"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofrs/flock"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
)

var doc = completeness.Document{
	{Journal: "ApJ", Fraction: 0.8, Details: []completeness.VolumeDetail{
		{Volume: "816", Fraction: 0.9}, {Volume: "817", Fraction: 0.5},
	}},
	{Journal: "MNRAS", Fraction: 1, Details: []completeness.VolumeDetail{{Volume: "500", Fraction: 1}}},
}

func TestFileSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "completeness.json")
	require.NoError(t, FileSink{Path: path}.Write(context.Background(), doc))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var back completeness.Document
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, doc, back)
}

func TestFileSinkRequiresPath(t *testing.T) {
	err := FileSink{}.Write(context.Background(), doc)
	require.ErrorIs(t, err, completeness.ErrMissingExportPath)
}

func TestFileSinkHonoursLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "completeness.json")
	held := flock.New(path + ".lock")
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = FileSink{Path: path}.Write(ctx, doc)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestParquetSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "completeness.parquet")
	require.NoError(t, ParquetSink{Path: path}.Write(context.Background(), doc))

	rows, err := parquet.ReadFile[VolumeRecord](path)
	require.NoError(t, err)
	require.Equal(t, Flatten(doc), rows)
	require.Len(t, rows, 3)
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://reports/compstat/completeness.json")
	require.NoError(t, err)
	require.Equal(t, "reports", bucket)
	require.Equal(t, "compstat/completeness.json", key)

	_, _, err = ParseS3URL("s3://bucket-only")
	require.Error(t, err)

	put := &fakePutter{}
	require.NoError(t, S3Sink{Client: put, Bucket: bucket, Key: key}.Write(context.Background(), doc))
	require.Equal(t, "reports", *put.in.Bucket)
	require.Equal(t, "application/json", *put.in.ContentType)
	require.NotEmpty(t, put.in.Metadata["sha256"])

	var back completeness.Document
	require.NoError(t, json.Unmarshal(put.body, &back))
	require.Equal(t, doc, back)
}

func TestSinksByTarget(t *testing.T) {
	dir := t.TempDir()
	sinks, err := Sinks(context.Background(), []string{
		filepath.Join(dir, "a.json"), "", filepath.Join(dir, "b.parquet"),
	}, S3Config{}, nil)
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	require.IsType(t, FileSink{}, sinks[0])
	require.IsType(t, ParquetSink{}, sinks[1])

	_, err = Sinks(context.Background(), []string{"s3://"}, S3Config{}, nil)
	require.Error(t, err)
}
