// Package kv is a single-node key-value store built on an append-only log.
//
// Every Put and Delete is appended to the log and fsynced before it is
// applied to the in-memory index, so reopening a store after a crash
// rebuilds exactly the state of every acknowledged write. Compact rewrites
// the log to hold only live keys and swaps it in with an atomic rename.
package kv

import (
	"sync"

	"walkv/config"
	"walkv/storage"
	"walkv/storage/wal"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/tsdb/fileutil"
	"go.uber.org/atomic"
)

// Store owns one log directory. Put, Delete, Compact and Close take the
// write lock for their whole duration; Get holds the read lock across the
// index lookup and the value read, since Compact replaces the file behind
// the index.
type Store struct {
	logger     log.Logger
	opts       config.StoreOptions
	metrics    *storeMetrics
	walMetrics *wal.Metrics

	mtx   sync.RWMutex
	log   *wal.Log
	index *storage.Index
	lock  fileutil.Releaser

	closed      atomic.Bool
	puts        atomic.Int64
	deletes     atomic.Int64
	compactions atomic.Int64
}

type Stats struct {
	LiveKeys    int
	LogSize     uint64
	LiveBytes   uint64
	Puts        int64
	Deletes     int64
	Compactions int64
}

// OpenDir opens the store in dir with default options and no metrics.
func OpenDir(dir string) (*Store, error) {
	return Open(nil, nil, config.DefaultStoreOptions(dir))
}

// Open opens or creates the store described by opts and rebuilds the index
// by replaying the log.
func Open(logger log.Logger, registerer prometheus.Registerer, opts config.StoreOptions) (*Store, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	lock, err := lockDir(opts.Dir)

	if err != nil {
		return nil, err
	}

	s := &Store{
		logger: log.With(logger, "component", "kv", "dir", opts.Dir),
		opts:   opts,
		lock:   lock,
	}

	if err := s.open(registerer); err != nil {
		s.unregister()

		if rerr := lock.Release(); rerr != nil {
			level.Error(s.logger).Log("msg", "error releasing directory lock", "err", rerr)
		}

		return nil, err
	}

	return s, nil
}

// registerMetrics labels every metric with the store directory so several
// stores can share one registerer.
func (s *Store) registerMetrics(registerer prometheus.Registerer) error {
	if registerer != nil {
		registerer = prometheus.WrapRegistererWith(prometheus.Labels{"dir": s.opts.Dir}, registerer)
	}

	var err error

	if s.metrics, err = newStoreMetrics(registerer); err != nil {
		return err
	}

	s.walMetrics, err = wal.NewMetrics(registerer)

	return err
}

func (s *Store) unregister() {
	if s.metrics != nil {
		s.metrics.unregister()
	}

	if s.walMetrics != nil {
		s.walMetrics.Unregister()
	}
}

func (s *Store) open(registerer prometheus.Registerer) error {
	if err := s.registerMetrics(registerer); err != nil {
		return err
	}

	// A compaction target can only survive a crash before its rename, in
	// which case the live log is still authoritative.
	removed, err := wal.RemoveStale(s.compactPath())

	if err != nil {
		return err
	}

	if removed {
		level.Warn(s.logger).Log("msg", "removed stale compaction target", "path", s.compactPath())
	}

	l, err := wal.Open(s.logger, s.walMetrics, s.opts.Dir, s.opts.LogFileName)

	if err != nil {
		return err
	}

	index, err := l.Replay()

	if err != nil {
		index, err = s.repair(l, err)
	}

	if err != nil {
		if cerr := l.Close(); cerr != nil {
			level.Error(s.logger).Log("msg", "error closing log", "err", cerr)
		}

		return err
	}

	s.log = l
	s.index = index
	s.metrics.liveKeys.Set(float64(index.Len()))

	level.Info(s.logger).Log("msg", "store opened", "keys", index.Len(), "log_bytes", l.Size())

	return nil
}

// repair cuts a torn trailing record left by a crash mid-append. Any other
// replay failure is returned unchanged.
func (s *Store) repair(l *wal.Log, replayErr error) (*storage.Index, error) {
	offset, torn := wal.IsTornTail(replayErr)

	if !torn || !s.opts.RepairTornTail {
		return nil, errors.Wrap(replayErr, "replay log")
	}

	// A flipped length field in the middle of the log looks the same as a
	// torn tail, so the cut bytes are kept next to the log.
	saved, err := wal.SaveTail(l.Path(), offset)

	if err != nil {
		return nil, err
	}

	level.Warn(s.logger).Log("msg", "truncating torn log tail", "offset", offset, "size", l.Size(), "saved", saved, "err", replayErr)

	if err := l.Truncate(offset); err != nil {
		return nil, err
	}

	index, err := l.Replay()

	if err != nil {
		return nil, errors.Wrap(err, "replay log after repair")
	}

	return index, nil
}

func (s *Store) validate(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	if uint64(len(key)) > uint64(s.opts.MaxKeySize) {
		return errors.Wrapf(ErrKeyTooLarge, "%d bytes, limit %d", len(key), s.opts.MaxKeySize)
	}

	if uint64(len(value)) > uint64(s.opts.MaxValueSize) {
		return errors.Wrapf(ErrValueTooLarge, "%d bytes, limit %d", len(value), s.opts.MaxValueSize)
	}

	return nil
}

// Put durably stores value under key. The index is only updated once the
// record has been fsynced.
func (s *Store) Put(key, value []byte) error {
	if err := s.validate(key, value); err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed.Load() {
		return ErrClosed
	}

	p, err := s.log.AppendPut(key, value)

	if err != nil {
		return errors.Wrap(err, "append put")
	}

	if err := s.log.Flush(); err != nil {
		return errors.Wrap(err, "flush put")
	}

	s.index.Insert(key, p)
	s.puts.Inc()
	s.metrics.liveKeys.Set(float64(s.index.Len()))

	return nil
}

// Get returns the value stored under key, or ErrNotFound. A miss never
// touches the log.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.closed.Load() {
		return nil, ErrClosed
	}

	p, ok := s.index.Get(key)

	if !ok {
		return nil, ErrNotFound
	}

	value, err := s.log.ReadVal(p.Offset, p.Length)

	if err != nil {
		return nil, errors.Wrapf(err, "read value at %d", p.Offset)
	}

	return value, nil
}

// Delete durably removes key. Deleting an absent key still writes a
// tombstone and is not an error.
func (s *Store) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed.Load() {
		return ErrClosed
	}

	if err := s.log.AppendDelete(key); err != nil {
		return errors.Wrap(err, "append delete")
	}

	if err := s.log.Flush(); err != nil {
		return errors.Wrap(err, "flush delete")
	}

	s.index.Remove(key)
	s.deletes.Inc()
	s.metrics.liveKeys.Set(float64(s.index.Len()))

	return nil
}

func (s *Store) Stats() Stats {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	stats := Stats{
		Puts:        s.puts.Load(),
		Deletes:     s.deletes.Load(),
		Compactions: s.compactions.Load(),
	}

	if s.closed.Load() {
		return stats
	}

	stats.LiveKeys = s.index.Len()
	stats.LiveBytes = s.index.LiveBytes()
	stats.LogSize = s.log.Size()

	return stats
}

// Close syncs and closes the log and releases the directory lock.
func (s *Store) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed.Load() {
		return ErrClosed
	}

	return s.shutdown()
}

// shutdown marks the store closed and releases every resource it still
// holds. The caller holds the write lock.
func (s *Store) shutdown() error {
	s.closed.Store(true)

	var err error

	if s.log != nil {
		err = s.log.Close()
		s.log = nil
	}

	if rerr := s.lock.Release(); rerr != nil {
		level.Error(s.logger).Log("msg", "error releasing directory lock", "err", rerr)

		if err == nil {
			err = errors.Wrap(rerr, "release directory lock")
		}
	}

	s.unregister()

	level.Info(s.logger).Log("msg", "store closed")

	return err
}

func (s *Store) compactPath() string {
	return wal.CompactPath(s.opts.Dir, s.opts.LogFileName, s.opts.CompactSuffix)
}
