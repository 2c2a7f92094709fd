package wal

import (
	"io"
	"os"
	"time"

	"walkv/storage"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrClosed    = errors.New("log closed")
	ErrShortRead = errors.New("value range past end of log")
)

// Log is a single append-only file of PUT and DELETE records. Appends go
// through a buffered writer; reads use positional I/O on a separate handle,
// so ReadVal may run concurrently with other ReadVal calls.
type Log struct {
	logger  log.Logger
	metrics *Metrics
	path    string

	writer *storage.SegmentWriter
	reader *os.File
	closed bool
}

type Metrics struct {
	collectors *storage.Collectors

	recordsAppended prometheus.Counter
	bytesAppended   prometheus.Counter
	writesFailed    prometheus.Counter
	fsyncDuration   prometheus.Summary
	replayedRecords prometheus.Counter
	corruptions     prometheus.Counter
}

// NewMetrics builds the log metrics and registers them with registerer
// under the storage_wal_ prefix. A nil registerer skips registration.
// Collectors already registered by an earlier log are reused.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer != nil {
		registerer = prometheus.WrapRegistererWithPrefix("storage_wal_", registerer)
	}

	m := &Metrics{collectors: storage.NewCollectors(registerer)}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}

	var err error

	if m.recordsAppended, err = storage.Register(m.collectors, counter("records_appended_total", "Total number of records appended to the log.")); err != nil {
		return nil, m.fail(err)
	}

	if m.bytesAppended, err = storage.Register(m.collectors, counter("bytes_appended_total", "Total number of bytes appended to the log.")); err != nil {
		return nil, m.fail(err)
	}

	if m.writesFailed, err = storage.Register(m.collectors, counter("writes_failed_total", "Total number of log writes that failed.")); err != nil {
		return nil, m.fail(err)
	}

	m.fsyncDuration, err = storage.Register(m.collectors, prometheus.NewSummary(prometheus.SummaryOpts{
		Name:       "fsync_duration_seconds",
		Help:       "Duration of log fsync.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}))
	if err != nil {
		return nil, m.fail(err)
	}

	if m.replayedRecords, err = storage.Register(m.collectors, counter("replayed_records_total", "Total number of records read while replaying the log.")); err != nil {
		return nil, m.fail(err)
	}

	if m.corruptions, err = storage.Register(m.collectors, counter("corruptions_total", "Total number of replays that stopped on a corrupt record.")); err != nil {
		return nil, m.fail(err)
	}

	return m, nil
}

func (m *Metrics) fail(err error) error {
	m.collectors.Unregister()
	return err
}

// Unregister removes the log metrics from the registerer they were
// registered with.
func (m *Metrics) Unregister() {
	m.collectors.Unregister()
}

// Open opens the log file name inside dir, creating the directory and the
// file when missing. Existing records are never truncated.
func Open(logger log.Logger, metrics *Metrics, dir, name string) (*Log, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	if metrics == nil {
		metrics, _ = NewMetrics(nil)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create log directory %s", dir)
	}

	path := LogPath(dir, name)

	writer, err := storage.OpenSegment(path)

	if err != nil {
		return nil, err
	}

	reader, err := os.Open(path)

	if err != nil {
		writer.Close()
		return nil, errors.Wrapf(err, "open %s for reading", path)
	}

	return &Log{
		logger:  logger,
		metrics: metrics,
		path:    path,
		writer:  writer,
		reader:  reader,
	}, nil
}

// AppendPut buffers a PUT record and returns where its value will live.
// The record is not durable until Flush.
func (l *Log) AppendPut(key, value []byte) (storage.LogPointer, error) {
	if l.closed {
		return storage.LogPointer{}, ErrClosed
	}

	before := l.writer.Written()

	p, err := l.writer.WritePut(key, value)
	l.observeAppend(before, err)

	return p, err
}

// AppendDelete buffers a tombstone for key.
func (l *Log) AppendDelete(key []byte) error {
	if l.closed {
		return ErrClosed
	}

	before := l.writer.Written()

	err := l.writer.WriteDelete(key)
	l.observeAppend(before, err)

	return err
}

func (l *Log) observeAppend(before uint64, err error) {
	if err != nil {
		l.metrics.writesFailed.Inc()
		return
	}

	l.metrics.recordsAppended.Inc()
	l.metrics.bytesAppended.Add(float64(l.writer.Written() - before))
}

// Flush writes buffered records to the file and fsyncs it.
func (l *Log) Flush() error {
	if l.closed {
		return ErrClosed
	}

	now := time.Now()
	err := l.writer.Sync()

	l.metrics.fsyncDuration.Observe(time.Since(now).Seconds())

	if err != nil {
		l.metrics.writesFailed.Inc()
	}

	return err
}

// ReadVal returns exactly length bytes starting at offset.
func (l *Log) ReadVal(offset uint64, length uint32) ([]byte, error) {
	if l.closed {
		return nil, ErrClosed
	}

	buf := make([]byte, length)

	if length == 0 {
		return buf, nil
	}

	n, err := l.reader.ReadAt(buf, int64(offset))

	if err == io.EOF && n < len(buf) {
		return nil, errors.Wrapf(ErrShortRead, "offset %d length %d", offset, length)
	}

	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read %d bytes at %d", length, offset)
	}

	return buf, nil
}

// Replay scans the log from a fresh handle and rebuilds the index.
func (l *Log) Replay() (*storage.Index, error) {
	if l.closed {
		return nil, ErrClosed
	}

	if err := l.writer.Flush(); err != nil {
		return nil, err
	}

	start := time.Now()
	index, err := ReplayFile(l.path, l.metrics)

	if err != nil {
		return index, err
	}

	level.Debug(l.logger).Log("msg", "log replayed", "path", l.path, "keys", index.Len(), "bytes", l.Size(), "duration", time.Since(start))

	return index, nil
}

// Truncate drops everything after size, used to cut a torn trailing record.
func (l *Log) Truncate(size uint64) error {
	if l.closed {
		return ErrClosed
	}

	if size > l.Size() {
		return errors.Errorf("truncate to %d beyond log size %d", size, l.Size())
	}

	return l.writer.Truncate(size)
}

// Size is the logical size of the log including buffered records.
func (l *Log) Size() uint64 {
	return l.writer.Written()
}

func (l *Log) Path() string {
	return l.path
}

// Close syncs pending records and releases both file handles.
func (l *Log) Close() error {
	if l.closed {
		return ErrClosed
	}

	l.closed = true

	err := l.writer.Close()

	if rerr := l.reader.Close(); rerr != nil {
		level.Error(l.logger).Log("msg", "error closing log reader", "err", rerr, "path", l.path)

		if err == nil {
			err = errors.Wrapf(rerr, "close %s", l.path)
		}
	}

	return err
}
