package wal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	DefaultLogFileName   = "wal.log"
	DefaultCompactSuffix = ".compact"

	// LockFileName is reserved for the directory lock.
	LockFileName = "LOCK"
)

// LogPath is the live log file inside dir.
func LogPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// CompactPath is the compaction target that sits next to the live log.
func CompactPath(dir, name, suffix string) string {
	return filepath.Join(dir, name+suffix)
}

// RemoveStale deletes a leftover file at path. It reports whether a file
// was actually removed.
func RemoveStale(path string) (bool, error) {
	err := os.Remove(path)

	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.Wrapf(err, "remove %s", path)
	}
}

func openReadSegment(path string) (*os.File, int64, error) {
	f, err := os.Open(path)

	if err != nil {
		return nil, 0, errors.Wrapf(err, "open %s for reading", path)
	}

	info, err := f.Stat()

	if err != nil {
		f.Close()
		return nil, 0, errors.Wrapf(err, "stat %s", path)
	}

	return f, info.Size(), nil
}

// TailPath is where SaveTail keeps the bytes cut from the log at offset.
func TailPath(path string, offset uint64) string {
	return fmt.Sprintf("%s.torn-%020d", path, offset)
}

// SaveTail copies everything in the file at path from offset onwards into
// TailPath and fsyncs the copy. It returns the path of the copy.
func SaveTail(path string, offset uint64) (string, error) {
	src, size, err := openReadSegment(path)

	if err != nil {
		return "", err
	}
	defer src.Close()

	if uint64(size) < offset {
		return "", errors.Errorf("tail offset %d beyond size %d of %s", offset, size, path)
	}

	dst := TailPath(path, offset)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)

	if err != nil {
		return "", errors.Wrapf(err, "create %s", dst)
	}

	if _, err := io.Copy(f, io.NewSectionReader(src, int64(offset), size-int64(offset))); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "copy tail to %s", dst)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "sync %s", dst)
	}

	return dst, errors.Wrapf(f.Close(), "close %s", dst)
}
