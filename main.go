package main

import (
	"os"

	"walkv/config"
	"walkv/kv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	registerer := prometheus.NewRegistry()

	cfg := config.Default()

	if len(os.Args) > 1 {
		var err error

		if cfg, err = config.LoadFile(os.Args[1]); err != nil {
			level.Error(logger).Log("msg", "error loading config", "err", err)
			os.Exit(1)
		}
	}

	store, err := kv.Open(logger, registerer, cfg.Store)

	if err != nil {
		level.Error(logger).Log("msg", "error opening store", "err", err)
		os.Exit(1)
	}

	if err := run(logger, store); err != nil {
		level.Error(logger).Log("err", err)
		store.Close()
		os.Exit(1)
	}

	if err := store.Close(); err != nil {
		level.Error(logger).Log("msg", "error closing store", "err", err)
		os.Exit(1)
	}
}

func run(logger log.Logger, store *kv.Store) error {
	writes := []struct{ key, value string }{
		{"a", "1"},
		{"a", "2"},
		{"b", "9"},
	}

	for _, w := range writes {
		if err := store.Put([]byte(w.key), []byte(w.value)); err != nil {
			return err
		}
	}

	if err := store.Compact(); err != nil {
		return err
	}

	for _, key := range []string{"a", "b"} {
		value, err := store.Get([]byte(key))

		if err != nil {
			return err
		}

		logger.Log("msg", "read after compaction", "key", key, "value", string(value))
	}

	stats := store.Stats()
	logger.Log("msg", "done", "live_keys", stats.LiveKeys, "log_bytes", stats.LogSize)

	return nil
}
