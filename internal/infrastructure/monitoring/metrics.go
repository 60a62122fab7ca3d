package monitoring

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can take one optionally.
type Metrics struct {
	// Bridge metrics
	EventsTotal      *prometheus.CounterVec
	Violations       *prometheus.CounterVec
	ActiveOperations prometheus.Gauge

	// Sink metrics
	SinkDropped    prometheus.Counter
	SinkQueueDepth prometheus.Gauge

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Counters resolved up front for the known event kinds, so the per-event
	// path does not go through the vector's label lookup.
	eventsByKind map[string]prometheus.Counter

	// Totals for log summaries
	events     atomic.Int64
	violations atomic.Int64
	dropped    atomic.Int64
}

// EventKinds are the kind labels with pre-resolved event counters.
var EventKinds = []string{"start", "stop", "log", "tag"}

// Snapshot holds current metric values for summaries
type Snapshot struct {
	Events     int64
	Violations int64
	Dropped    int64
}

// NewMetrics creates a metrics collector registered with reg. Pass
// prometheus.DefaultRegisterer to expose on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowtrace_events_total",
				Help: "Total number of events emitted to the sink",
			},
			[]string{"kind"},
		),
		Violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowtrace_causality_violations_total",
				Help: "Total number of rejected events",
			},
			[]string{"reason"},
		),
		ActiveOperations: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowtrace_active_operations",
				Help: "Number of operations currently open across all flows",
			},
		),

		SinkDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "flowtrace_sink_dropped_total",
				Help: "Total number of events dropped by a full async sink",
			},
		),
		SinkQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowtrace_sink_queue_depth",
				Help: "Number of events waiting in the async sink buffer",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowtrace_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowtrace_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
	}

	m.eventsByKind = make(map[string]prometheus.Counter, len(EventKinds))
	for _, kind := range EventKinds {
		m.eventsByKind[kind] = m.EventsTotal.WithLabelValues(kind)
	}
	return m
}

// RecordEvent records one emitted event of the given kind
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	if c, ok := m.eventsByKind[kind]; ok {
		c.Inc()
	} else {
		m.EventsTotal.WithLabelValues(kind).Inc()
	}
	m.events.Add(1)
}

// RecordViolation records a rejected event
func (m *Metrics) RecordViolation(reason string) {
	if m == nil {
		return
	}
	m.Violations.WithLabelValues(reason).Inc()
	m.violations.Add(1)
}

// IncActiveOperations increments the open operations gauge
func (m *Metrics) IncActiveOperations() {
	if m == nil {
		return
	}
	m.ActiveOperations.Inc()
}

// DecActiveOperations decrements the open operations gauge
func (m *Metrics) DecActiveOperations() {
	if m == nil {
		return
	}
	m.ActiveOperations.Dec()
}

// RecordDrop records an event dropped by a sink
func (m *Metrics) RecordDrop() {
	if m == nil {
		return
	}
	m.SinkDropped.Inc()
	m.dropped.Add(1)
}

// SetQueueDepth sets the async sink buffer depth
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.SinkQueueDepth.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Snapshot returns the current summary values
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Events:     m.events.Load(),
		Violations: m.violations.Load(),
		Dropped:    m.dropped.Load(),
	}
}
