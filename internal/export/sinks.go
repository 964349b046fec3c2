package export

import (
	"context"
	"path/filepath"
	"strings"

	"compstat/internal/completeness"

	"go.uber.org/zap"
)

// Sinks maps destinations to sinks: s3:// URLs upload, *.parquet paths
// write parquet, anything else writes JSON. Empty targets are ignored; the
// caller reports a configuration error if none remain.
func Sinks(ctx context.Context, targets []string, s3cfg S3Config, logger *zap.Logger) ([]completeness.Sink, error) {
	out := make([]completeness.Sink, 0, len(targets))
	for _, t := range targets {
		t = strings.TrimSpace(t)
		switch {
		case t == "":
			continue
		case strings.HasPrefix(t, "s3://"):
			bucket, key, err := ParseS3URL(t)
			if err != nil {
				return nil, err
			}
			client, err := NewS3Client(ctx, s3cfg)
			if err != nil {
				return nil, err
			}
			out = append(out, S3Sink{Client: client, Bucket: bucket, Key: key, Logger: logger})
		case strings.EqualFold(filepath.Ext(t), ".parquet"):
			out = append(out, ParquetSink{Path: t, Logger: logger})
		default:
			out = append(out, FileSink{Path: t, Logger: logger})
		}
	}
	return out, nil
}
