// Package export writes completeness documents to their destinations: a
// JSON file, a parquet table or an S3 object.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"compstat/internal/completeness"
	"compstat/internal/util"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

var ErrExportLocked = errors.New("export destination locked by another writer")

const lockRetry = 250 * time.Millisecond

// FileSink writes the document as JSON. Concurrent exporters serialize on a
// sibling .lock file; readers only ever see a complete file.
type FileSink struct {
	Path   string
	Logger *zap.Logger
}

func (s FileSink) Write(ctx context.Context, doc completeness.Document) error {
	if s.Path == "" {
		return completeness.ErrMissingExportPath
	}
	return withLock(ctx, s.Path, func() error {
		if err := util.WriteJSONAtomic(s.Path, doc); err != nil {
			return fmt.Errorf("write completeness json: %w", err)
		}
		logger(s.Logger).Info("completeness json written", zap.String("path", s.Path), zap.Int("journals", len(doc)))
		return nil
	})
}

func withLock(ctx context.Context, path string, fn func() error) error {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("acquire export lock: %w", err)
	}
	if !ok {
		return ErrExportLocked
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
