// Package metrics exposes pool telemetry. Pools report through the
// Collector interface; PrometheusCollector forwards to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Acquire outcomes
const (
	OutcomeIdle    = "idle"
	OutcomeOpened  = "opened"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Collector receives pool events. Implementations are called on the
// acquire/release paths and must be cheap.
type Collector interface {
	SetConnections(node string, idle, active int)
	IncAcquire(node, outcome string)
	ObserveAcquireWait(node string, wait time.Duration)
	IncDiscarded(node string)
	IncOpenFailure(node string)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) SetConnections(string, int, int)          {}
func (noopCollector) IncAcquire(string, string)                {}
func (noopCollector) ObserveAcquireWait(string, time.Duration) {}
func (noopCollector) IncDiscarded(string)                      {}
func (noopCollector) IncOpenFailure(string)                    {}

// PrometheusCollector exposes pool metrics via Prometheus.
type PrometheusCollector struct {
	connections  *prometheus.GaugeVec
	acquires     *prometheus.CounterVec
	acquireWait  *prometheus.HistogramVec
	discarded    *prometheus.CounterVec
	openFailures *prometheus.CounterVec
}

// NewPrometheusCollector registers the pool metrics with reg, reusing
// collectors that are already registered.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	connections, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nodepool_connections",
		Help: "Connections per node by state (idle or active).",
	}, []string{"node", "state"}))
	if err != nil {
		return nil, err
	}

	acquires, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nodepool_acquire_total",
		Help: "Acquire calls per node by outcome.",
	}, []string{"node", "outcome"}))
	if err != nil {
		return nil, err
	}

	acquireWait, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nodepool_acquire_wait_seconds",
		Help:    "Time callers spent in acquire, including waits at capacity.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"node"}))
	if err != nil {
		return nil, err
	}

	discarded, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nodepool_discarded_total",
		Help: "Connections discarded after failing validation.",
	}, []string{"node"}))
	if err != nil {
		return nil, err
	}

	openFailures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nodepool_open_failures_total",
		Help: "Failed attempts to open a physical connection.",
	}, []string{"node"}))
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		connections:  connections,
		acquires:     acquires,
		acquireWait:  acquireWait,
		discarded:    discarded,
		openFailures: openFailures,
	}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// SetConnections records the idle and active counts of a node.
func (c *PrometheusCollector) SetConnections(node string, idle, active int) {
	c.connections.WithLabelValues(node, "idle").Set(float64(idle))
	c.connections.WithLabelValues(node, "active").Set(float64(active))
}

// IncAcquire counts an acquire call.
func (c *PrometheusCollector) IncAcquire(node, outcome string) {
	c.acquires.WithLabelValues(node, outcome).Inc()
}

// ObserveAcquireWait records how long an acquire call took.
func (c *PrometheusCollector) ObserveAcquireWait(node string, wait time.Duration) {
	c.acquireWait.WithLabelValues(node).Observe(wait.Seconds())
}

// IncDiscarded counts a connection dropped after failing validation.
func (c *PrometheusCollector) IncDiscarded(node string) {
	c.discarded.WithLabelValues(node).Inc()
}

// IncOpenFailure counts a failed physical open.
func (c *PrometheusCollector) IncOpenFailure(node string) {
	c.openFailures.WithLabelValues(node).Inc()
}
