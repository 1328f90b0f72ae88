package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics is the set of Prometheus collectors exported by the proxy. Each
// instance owns a private registry so tests and multiple proxies in one
// process never collide on registration.
type Metrics struct {
	registry           *prometheus.Registry
	totalRequests      prometheus.Counter
	statusCodes        *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	backendConnections prometheus.Gauge
	droppedEvents      prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		totalRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "total_requests",
			Help: "Total relayed connections that completed successfully",
		}),
		statusCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_status_codes",
			Help: "Connection outcomes by status code",
		}, []string{"code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "request_latency",
			Help:    "End-to-end relay duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		backendConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backend_connections",
			Help: "Upstream connections currently open",
		}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dropped_events",
			Help: "Metric events dropped because the collector buffer was full",
		}),
	}

	m.registry.MustRegister(
		m.totalRequests,
		m.statusCodes,
		m.requestLatency,
		m.backendConnections,
		m.droppedEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) IncrementRequests() {
	m.totalRequests.Inc()
}

func (m *Metrics) RecordStatus(code int) {
	m.statusCodes.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) ObserveLatency(seconds float64) {
	m.requestLatency.Observe(seconds)
}

func (m *Metrics) AddBackendConnections(delta float64) {
	m.backendConnections.Add(delta)
}

func (m *Metrics) IncrementDroppedEvents() {
	m.droppedEvents.Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The accessors below expose the underlying collectors for inspection.
func (m *Metrics) TotalRequests() prometheus.Counter {
	return m.totalRequests
}

func (m *Metrics) StatusCodes() *prometheus.CounterVec {
	return m.statusCodes
}

func (m *Metrics) RequestLatency() prometheus.Histogram {
	return m.requestLatency
}

func (m *Metrics) BackendConnections() prometheus.Gauge {
	return m.backendConnections
}

func (m *Metrics) DroppedEvents() prometheus.Counter {
	return m.droppedEvents
}
