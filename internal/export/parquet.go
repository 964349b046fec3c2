package export

import (
	"context"
	"fmt"
	"io"

	"compstat/internal/completeness"
	"compstat/internal/util"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
)

// VolumeRecord is one flattened row of the parquet export.
type VolumeRecord struct {
	Journal         string  `parquet:"bibstem"`
	JournalFraction float64 `parquet:"journal_completeness_fraction"`
	Volume          string  `parquet:"volume"`
	Fraction        float64 `parquet:"completeness_fraction"`
}

// Flatten expands a document into one record per volume.
func Flatten(doc completeness.Document) []VolumeRecord {
	out := make([]VolumeRecord, 0, len(doc))
	for _, j := range doc {
		for _, v := range j.Details {
			out = append(out, VolumeRecord{
				Journal:         j.Journal,
				JournalFraction: j.Fraction,
				Volume:          v.Volume,
				Fraction:        v.Fraction,
			})
		}
	}
	return out
}

type ParquetSink struct {
	Path   string
	Logger *zap.Logger
}

func (s ParquetSink) Write(ctx context.Context, doc completeness.Document) error {
	if s.Path == "" {
		return completeness.ErrMissingExportPath
	}
	rows := Flatten(doc)
	return withLock(ctx, s.Path, func() error {
		err := util.WriteAtomic(s.Path, func(w io.Writer) error {
			pw := parquet.NewGenericWriter[VolumeRecord](w)
			if _, err := pw.Write(rows); err != nil {
				return fmt.Errorf("write parquet rows: %w", err)
			}
			if err := pw.Close(); err != nil {
				return fmt.Errorf("close parquet writer: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		logger(s.Logger).Info("completeness parquet written", zap.String("path", s.Path), zap.Int("rows", len(rows)))
		return nil
	})
}
