package kv

import (
	"time"

	"walkv/storage"
	"walkv/storage/wal"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/tsdb/fileutil"
)

var replaceFile = fileutil.Replace

// Compact rewrites the log so it holds exactly one PUT per live key and
// atomically swaps it in for the current log. Writes are blocked for the
// whole protocol.
//
// Until the rename the live log is never modified, so a crash at any
// earlier point leaves the store exactly as it was; the abandoned target is
// removed on the next Open.
func (s *Store) Compact() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	before := s.log.Size()

	level.Info(s.logger).Log("msg", "compaction started", "keys", s.index.Len(), "log_bytes", before)

	if err := s.compact(); err != nil {
		s.metrics.compactionsFailed.Inc()
		level.Error(s.logger).Log("msg", "compaction failed", "err", err)

		return err
	}

	after := s.log.Size()
	elapsed := time.Since(start)

	s.compactions.Inc()
	s.metrics.compactions.Inc()
	s.metrics.compactionDuration.Observe(elapsed.Seconds())
	s.metrics.liveKeys.Set(float64(s.index.Len()))

	if before > after {
		s.metrics.reclaimedBytes.Add(float64(before - after))
	}

	level.Info(s.logger).Log("msg", "compaction finished", "keys", s.index.Len(), "log_bytes_before", before, "log_bytes_after", after, "duration", elapsed)

	return nil
}

func (s *Store) compact() error {
	target := s.compactPath()

	if err := s.writeTarget(target); err != nil {
		if _, rerr := wal.RemoveStale(target); rerr != nil {
			level.Error(s.logger).Log("msg", "error removing compaction target", "err", rerr)
		}

		return err
	}

	live := s.log.Path()

	if err := s.log.Close(); err != nil {
		// The old log may have lost buffered writes; every acknowledged
		// record was already fsynced, so carry on with the swap.
		level.Warn(s.logger).Log("msg", "error closing log before swap", "err", err)
	}
	s.log = nil

	if err := replaceFile(target, live); err != nil {
		// Replace can fail after the rename went through, in which case
		// the target is already gone and the live log is the compacted one.
		removed, rerr := wal.RemoveStale(target)

		if rerr != nil {
			level.Error(s.logger).Log("msg", "error removing compaction target", "err", rerr)
		}

		level.Warn(s.logger).Log("msg", "compaction swap failed", "renamed", !removed && rerr == nil, "err", err)

		return s.reopen(errors.Wrap(err, "swap compacted log"))
	}

	index, err := wal.ReplayFile(live, s.walMetrics)

	if err != nil {
		return s.fail(errors.Wrap(err, "replay compacted log"))
	}

	l, err := wal.Open(s.logger, s.walMetrics, s.opts.Dir, s.opts.LogFileName)

	if err != nil {
		return s.fail(errors.Wrap(err, "reopen compacted log"))
	}

	if index.Len() != s.index.Len() {
		level.Warn(s.logger).Log("msg", "index diverged during compaction", "before", s.index.Len(), "after", index.Len())
	}

	s.log = l
	s.index = index

	return nil
}

// writeTarget writes every live value into a fresh file at path and fsyncs
// it. The live log is only read.
func (s *Store) writeTarget(path string) error {
	w, err := storage.CreateSegment(path)

	if err != nil {
		return errors.Wrap(err, "create compaction target")
	}

	for _, key := range s.index.Keys() {
		p, _ := s.index.Get(key)

		value, err := s.log.ReadVal(p.Offset, p.Length)

		if err != nil {
			w.Close()
			return errors.Wrapf(err, "read live value of %q", key)
		}

		if _, err := w.WritePut(key, value); err != nil {
			w.Close()
			return errors.Wrap(err, "write compaction target")
		}
	}

	if err := w.Sync(); err != nil {
		w.Close()
		return errors.Wrap(err, "sync compaction target")
	}

	return errors.Wrap(w.Close(), "close compaction target")
}

// reopen restores a usable log after a failed swap. The file now at the
// live path may be either the old log or the compacted one, so the index is
// rebuilt from whatever is there.
func (s *Store) reopen(cause error) error {
	l, err := wal.Open(s.logger, s.walMetrics, s.opts.Dir, s.opts.LogFileName)

	if err != nil {
		return s.fail(errors.Wrapf(cause, "reopen log: %v", err))
	}

	index, err := l.Replay()

	if err != nil {
		if cerr := l.Close(); cerr != nil {
			level.Error(s.logger).Log("msg", "error closing log", "err", cerr)
		}

		return s.fail(errors.Wrapf(cause, "replay reopened log: %v", err))
	}

	s.log = l
	s.index = index

	return cause
}

// fail shuts the store down after the log can no longer be trusted. The
// on-disk state is still recoverable by opening the directory again.
func (s *Store) fail(cause error) error {
	if err := s.shutdown(); err != nil {
		level.Error(s.logger).Log("msg", "error shutting down store", "err", err)
	}

	return cause
}
