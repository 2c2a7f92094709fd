package kv

import (
	"os"
	"path/filepath"

	"walkv/storage/wal"

	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/tsdb/fileutil"
)

// lockDir takes an exclusive flock on dir/LOCK so only one process at a
// time owns the log. The directory is created when missing.
func lockDir(dir string) (fileutil.Releaser, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create store directory %s", dir)
	}

	releaser, _, err := fileutil.Flock(filepath.Join(dir, wal.LockFileName))

	if err != nil {
		return nil, errors.Wrapf(ErrLocked, "%s: %v", dir, err)
	}

	return releaser, nil
}
