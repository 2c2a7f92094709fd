package kv

import (
	"walkv/storage"

	"github.com/prometheus/client_golang/prometheus"
)

type storeMetrics struct {
	collectors *storage.Collectors

	compactions        prometheus.Counter
	compactionsFailed  prometheus.Counter
	compactionDuration prometheus.Summary
	reclaimedBytes     prometheus.Counter
	liveKeys           prometheus.Gauge
}

// newStoreMetrics registers the store metrics under the kv_ prefix. The
// registerer is expected to carry the store's dir label already.
func newStoreMetrics(registerer prometheus.Registerer) (*storeMetrics, error) {
	if registerer != nil {
		registerer = prometheus.WrapRegistererWithPrefix("kv_", registerer)
	}

	m := &storeMetrics{collectors: storage.NewCollectors(registerer)}

	var err error

	m.compactions, err = storage.Register(m.collectors, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compactions_total",
		Help: "Total number of completed log compactions.",
	}))
	if err != nil {
		return nil, m.fail(err)
	}

	m.compactionsFailed, err = storage.Register(m.collectors, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compactions_failed_total",
		Help: "Total number of log compactions that failed.",
	}))
	if err != nil {
		return nil, m.fail(err)
	}

	m.compactionDuration, err = storage.Register(m.collectors, prometheus.NewSummary(prometheus.SummaryOpts{
		Name:       "compaction_duration_seconds",
		Help:       "Duration of log compaction.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}))
	if err != nil {
		return nil, m.fail(err)
	}

	m.reclaimedBytes, err = storage.Register(m.collectors, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compaction_reclaimed_bytes_total",
		Help: "Total number of log bytes reclaimed by compaction.",
	}))
	if err != nil {
		return nil, m.fail(err)
	}

	m.liveKeys, err = storage.Register(m.collectors, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "live_keys",
		Help: "Number of keys currently in the index.",
	}))
	if err != nil {
		return nil, m.fail(err)
	}

	return m, nil
}

func (m *storeMetrics) fail(err error) error {
	m.collectors.Unregister()
	return err
}

func (m *storeMetrics) unregister() {
	m.collectors.Unregister()
}
