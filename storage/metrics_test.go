package storage

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: "things_total", Help: "Things."})
}

func TestRegisterReusesExisting(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := NewCollectors(registry)
	a, err := Register(first, newCounter())
	require.NoError(t, err)

	second := NewCollectors(registry)
	b, err := Register(second, newCounter())
	require.NoError(t, err)

	a.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(b))

	// Only the owner takes the collector back out.
	second.Unregister()
	assert.Equal(t, 1, testutil.CollectAndCount(registry))

	first.Unregister()
	assert.Equal(t, 0, testutil.CollectAndCount(registry))

	_, err = Register(NewCollectors(registry), newCounter())
	require.NoError(t, err)
}

func TestRegisterConflict(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := Register(NewCollectors(registry), newCounter())
	require.NoError(t, err)

	_, err = Register(NewCollectors(registry), prometheus.NewGauge(prometheus.GaugeOpts{Name: "things_total", Help: "Things."}))
	assert.Error(t, err)
}

func TestRegisterNilRegisterer(t *testing.T) {
	c := NewCollectors(nil)

	counter, err := Register(c, newCounter())
	require.NoError(t, err)

	counter.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(counter))

	c.Unregister()
}
