package wal

import (
	"io"

	"walkv/storage"

	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/tsdb/wlog"
)

// Entry describes one record found while scanning the log.
type Entry struct {
	Type   storage.RecordType
	Key    []byte             // valid until the next call to Next
	Value  storage.LogPointer // zero for deletes
	Offset uint64             // where the record starts
	Size   uint64
}

// Reader walks the records of a log file front to back. Values are never
// read: the reader steps over them by length, so memory stays proportional
// to key sizes.
type Reader struct {
	reader  io.ReaderAt
	size    uint64
	offset  uint64
	hdr     [storage.MaxHeaderSize]byte
	key     []byte
	entry   Entry
	err     error
	corrupt bool
}

func NewReader(reader io.ReaderAt, size int64) *Reader {
	return &Reader{reader: reader, size: uint64(size)}
}

// Next advances to the next record. It returns false at the end of the log
// or on error; check Err afterwards.
func (r *Reader) Next() bool {
	if r.err != nil || r.offset == r.size {
		return false
	}

	if err := r.next(); err != nil {
		r.err = err
		return false
	}

	return true
}

func (r *Reader) next() error {
	remaining := r.size - r.offset

	if _, err := r.reader.ReadAt(r.hdr[:1], int64(r.offset)); err != nil {
		return errors.Wrap(err, "read record tag")
	}

	typ := storage.RecordType(r.hdr[0])

	hs, err := typ.HeaderSize()
	if err != nil {
		r.corrupt = true
		return errors.Wrapf(err, "tag %d", r.hdr[0])
	}

	if remaining < uint64(hs) {
		r.corrupt = true
		return errors.Wrapf(storage.ErrTruncatedRecord, "%s header needs %d bytes, %d left", typ, hs, remaining)
	}

	if _, err := r.reader.ReadAt(r.hdr[1:hs], int64(r.offset)+1); err != nil {
		return errors.Wrap(err, "read record header")
	}

	h, err := storage.DecodeHeader(r.hdr[:hs])
	if err != nil {
		r.corrupt = true
		return err
	}

	if remaining < h.Size() {
		r.corrupt = true
		return errors.Wrapf(storage.ErrTruncatedRecord, "%s record needs %d bytes, %d left", typ, h.Size(), remaining)
	}

	if cap(r.key) < int(h.KeySize) {
		r.key = make([]byte, h.KeySize)
	}
	r.key = r.key[:h.KeySize]

	if _, err := r.reader.ReadAt(r.key, int64(r.offset)+int64(hs)); err != nil {
		return errors.Wrap(err, "read record key")
	}

	r.entry = Entry{
		Type:   typ,
		Key:    r.key,
		Offset: r.offset,
		Size:   h.Size(),
	}

	if typ == storage.RecordPut {
		r.entry.Value = storage.LogPointer{
			Offset: storage.ValueOffset(r.offset, h.KeySize),
			Length: h.ValueSize,
		}
	}

	r.offset += h.Size()

	return nil
}

func (r *Reader) Entry() Entry {
	return r.entry
}

// Offset is the end of the last complete record read so far.
func (r *Reader) Offset() uint64 {
	return r.offset
}

// CorruptionError reports a malformed log. It matches both
// *wlog.CorruptionErr and the underlying cause with errors.As and errors.Is.
type CorruptionError struct {
	*wlog.CorruptionErr
}

func (e *CorruptionError) Unwrap() []error {
	return []error{e.CorruptionErr, e.Err}
}

// Err returns the error that stopped the scan, if any. Format problems are
// reported as *CorruptionError whose Offset is the last good record
// boundary.
func (r *Reader) Err() error {
	if r.err == nil {
		return nil
	}

	if !r.corrupt {
		return r.err
	}

	return &CorruptionError{&wlog.CorruptionErr{
		Err:     r.err,
		Segment: -1,
		Offset:  int64(r.offset),
	}}
}

// ReplayFile rebuilds an index from the log at path. When the log is
// corrupt the index built from the records before the corruption is
// returned together with the error.
func ReplayFile(path string, metrics *Metrics) (*storage.Index, error) {
	f, size, err := openReadSegment(path)

	if err != nil {
		return nil, err
	}
	defer f.Close()

	index := storage.NewIndex()
	reader := NewReader(f, size)

	for reader.Next() {
		e := reader.Entry()

		switch e.Type {
		case storage.RecordPut:
			index.Insert(e.Key, e.Value)
		case storage.RecordDelete:
			index.Remove(e.Key)
		}

		if metrics != nil {
			metrics.replayedRecords.Inc()
		}
	}

	if err := reader.Err(); err != nil {
		var cerr *wlog.CorruptionErr
		if errors.As(err, &cerr) {
			cerr.Dir = path
			if metrics != nil {
				metrics.corruptions.Inc()
			}
		}

		return index, err
	}

	return index, nil
}

// IsTornTail reports whether err is a corruption caused by a truncated
// trailing record, and if so where the last complete record ends.
func IsTornTail(err error) (uint64, bool) {
	var cerr *wlog.CorruptionErr

	if !errors.As(err, &cerr) || !errors.Is(err, storage.ErrTruncatedRecord) {
		return 0, false
	}

	return uint64(cerr.Offset), true
}
