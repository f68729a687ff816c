package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	registry          *prometheus.Registry
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	errors            *prometheus.CounterVec
	decisions         *prometheus.CounterVec
	integrityFailures prometheus.Counter
	statsCacheLookups *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests labeled by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "civic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Rendered API errors labeled by route, method and code",
		}, []string{"route", "method", "code"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "firewall",
			Name:      "decisions_total",
			Help:      "Record-level access decisions",
		}, []string{"decision"}),
		integrityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "firewall",
			Name:      "aggregate_integrity_failures_total",
			Help:      "Aggregates withheld because sensitive rows could not be excluded",
		}),
		statsCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "stats",
			Name:      "cache_lookups_total",
			Help:      "Public statistics cache lookups labeled by result",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.errors,
		m.decisions,
		m.integrityFailures,
		m.statsCacheLookups,
	)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest counts a completed request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError counts a rendered error.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordDecision counts an access policy outcome.
func (m *Metrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

// RecordIntegrityFailure counts a withheld aggregate.
func (m *Metrics) RecordIntegrityFailure() {
	if m == nil {
		return
	}
	m.integrityFailures.Inc()
}

// RecordCacheLookup counts a statistics cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.statsCacheLookups.WithLabelValues(result).Inc()
}
