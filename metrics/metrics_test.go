package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	c.SetConnections("primary", 3, 2)
	c.IncAcquire("primary", OutcomeIdle)
	c.IncAcquire("primary", OutcomeIdle)
	c.IncAcquire("primary", OutcomeTimeout)
	c.ObserveAcquireWait("primary", 20*time.Millisecond)
	c.IncDiscarded("primary")
	c.IncOpenFailure("replica")

	assert.Equal(t, 3.0, testutil.ToFloat64(c.connections.WithLabelValues("primary", "idle")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connections.WithLabelValues("primary", "active")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.acquires.WithLabelValues("primary", OutcomeIdle)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.acquires.WithLabelValues("primary", OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.discarded.WithLabelValues("primary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.openFailures.WithLabelValues("replica")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.acquireWait))
}

func TestPrometheusCollectorReusesRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	second, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	first.IncDiscarded("primary")
	second.IncDiscarded("primary")
	assert.Equal(t, 2.0, testutil.ToFloat64(first.discarded.WithLabelValues("primary")))
	assert.Same(t, first.discarded, second.discarded)
}

func TestNoop(t *testing.T) {
	c := Noop()
	c.SetConnections("primary", 1, 1)
	c.IncAcquire("primary", OutcomeOpened)
	c.ObserveAcquireWait("primary", time.Second)
	c.IncDiscarded("primary")
	c.IncOpenFailure("primary")
}
