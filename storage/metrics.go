package storage

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors tracks what one component registered so it can be taken back
// out when the component shuts down.
type Collectors struct {
	registerer prometheus.Registerer
	registered []prometheus.Collector
}

// NewCollectors wraps registerer. A nil registerer makes every
// registration a no-op.
func NewCollectors(registerer prometheus.Registerer) *Collectors {
	return &Collectors{registerer: registerer}
}

// Register registers collector and returns the collector to use. When an
// identical collector is already registered that one is returned instead.
func Register[T prometheus.Collector](c *Collectors, collector T) (T, error) {
	if c.registerer == nil {
		return collector, nil
	}

	err := c.registerer.Register(collector)

	if err == nil {
		c.registered = append(c.registered, collector)
		return collector, nil
	}

	var are prometheus.AlreadyRegisteredError

	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}

	var zero T

	return zero, errors.Wrap(err, "register metric")
}

// Unregister removes everything Register added.
func (c *Collectors) Unregister() {
	for _, collector := range c.registered {
		c.registerer.Unregister(collector)
	}

	c.registered = nil
}
