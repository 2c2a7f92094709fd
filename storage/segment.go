package storage

import (
	"bufio"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/tsdb/wlog"
)

const writeBufferSize = 64 * 1024

// SegmentWriter is a buffered, append-only record stream over one file.
// Nothing written is guaranteed durable until Sync returns.
type SegmentWriter struct {
	path    string
	file    wlog.SegmentFile
	writer  *bufio.Writer
	written uint64
}

// CreateSegment opens path for writing, truncating any previous content.
func CreateSegment(path string) (*SegmentWriter, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)

	if err != nil {
		return nil, errors.Wrapf(err, "create segment %s", path)
	}

	return newSegmentWriter(path, file, 0), nil
}

// OpenSegment opens path for appending, creating it when missing. Existing
// content is preserved and new records go after it.
func OpenSegment(path string) (*SegmentWriter, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)

	if err != nil {
		return nil, errors.Wrapf(err, "open segment %s", path)
	}

	info, err := file.Stat()

	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "stat segment %s", path)
	}

	return newSegmentWriter(path, file, uint64(info.Size())), nil
}

func newSegmentWriter(path string, file wlog.SegmentFile, size uint64) *SegmentWriter {
	return &SegmentWriter{
		path:    path,
		file:    file,
		writer:  bufio.NewWriterSize(file, writeBufferSize),
		written: size,
	}
}

// Write appends r and returns the offset at which the record starts.
func (s *SegmentWriter) Write(r *Record) (uint64, error) {
	if !FitsLength(len(r.Key)) || !FitsLength(len(r.Value)) {
		return 0, errors.Errorf("record field too large: key %d bytes, value %d bytes", len(r.Key), len(r.Value))
	}

	buf := recordPool.GetBytes()
	defer recordPool.PutBytes(buf)

	if n := EncodedSize(r); cap(*buf) < n {
		*buf = make([]byte, 0, n)
	}

	*buf = serialize(r, *buf)

	start := s.written

	n, err := s.writer.Write(*buf)
	s.written += uint64(n)

	if err != nil {
		return start, errors.Wrapf(err, "write %s record", r.Type)
	}

	return start, nil
}

// WritePut appends a PUT record and returns the pointer to its value.
func (s *SegmentWriter) WritePut(key, value []byte) (LogPointer, error) {
	start, err := s.Write(&Record{Type: RecordPut, Key: key, Value: value})

	if err != nil {
		return LogPointer{}, err
	}

	return LogPointer{
		Offset: ValueOffset(start, uint32(len(key))),
		Length: uint32(len(value)),
	}, nil
}

func (s *SegmentWriter) WriteDelete(key []byte) error {
	_, err := s.Write(&Record{Type: RecordDelete, Key: key})

	return err
}

// Flush hands buffered records to the operating system.
func (s *SegmentWriter) Flush() error {
	return errors.Wrapf(s.writer.Flush(), "flush segment %s", s.path)
}

// Sync flushes buffered records and fsyncs the file.
func (s *SegmentWriter) Sync() error {
	if err := s.Flush(); err != nil {
		return err
	}

	return errors.Wrapf(s.file.Sync(), "sync segment %s", s.path)
}

// Truncate discards everything past size. Buffered records are flushed first.
func (s *SegmentWriter) Truncate(size uint64) error {
	if err := s.Flush(); err != nil {
		return err
	}

	if err := os.Truncate(s.path, int64(size)); err != nil {
		return errors.Wrapf(err, "truncate segment %s", s.path)
	}

	s.written = size

	return errors.Wrapf(s.file.Sync(), "sync segment %s", s.path)
}

// Written returns the logical file size, buffered bytes included.
func (s *SegmentWriter) Written() uint64 {
	return s.written
}

func (s *SegmentWriter) Path() string {
	return s.path
}

// Close syncs and closes the file. The file is closed even if the sync fails.
func (s *SegmentWriter) Close() error {
	err := s.Sync()

	if cerr := s.file.Close(); err == nil {
		err = errors.Wrapf(cerr, "close segment %s", s.path)
	}

	return err
}
