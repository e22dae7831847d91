// Package metrics exposes Prometheus metrics for the registry daemon. Each
// Metrics value carries its own registry so tests can build as many as they
// need without collisions.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodian-sh/custodian/pkg/ownership"
)

// Metrics tracks HTTP traffic, ownership transitions, and host health.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge

	transitionsTotal *prometheus.CounterVec
	resources        *prometheus.GaugeVec
	auditPruned      prometheus.Counter

	hostCPU    prometheus.Gauge
	hostMemory prometheus.Gauge
}

// New creates a Metrics value with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custodian_http_requests_total",
				Help: "Total HTTP requests handled by the registry API",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "custodian_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "custodian_http_requests_in_flight",
				Help: "HTTP requests currently being served",
			},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custodian_transitions_total",
				Help: "Ownership transition attempts by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		resources: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "custodian_resources",
				Help: "Registered resources by ownership state",
			},
			[]string{"kind"},
		),
		auditPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "custodian_audit_pruned_total",
				Help: "Transition records removed by retention pruning",
			},
		),
		hostCPU: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "custodian_host_cpu_percent",
				Help: "Host CPU usage percentage (0-100)",
			},
		),
		hostMemory: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "custodian_host_memory_used_bytes",
				Help: "Host memory in use, in bytes",
			},
		),
	}

	m.registry.MustRegister(m.requestsTotal)
	m.registry.MustRegister(m.requestDuration)
	m.registry.MustRegister(m.inFlight)
	m.registry.MustRegister(m.transitionsTotal)
	m.registry.MustRegister(m.resources)
	m.registry.MustRegister(m.auditPruned)
	m.registry.MustRegister(m.hostCPU)
	m.registry.MustRegister(m.hostMemory)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Middleware instruments a handler with request counts, latency, and
// in-flight tracking. Paths are labeled by route template, not raw URL, to
// keep label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		m.inFlight.Inc()
		defer m.inFlight.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		timer := prometheus.NewTimer(m.requestDuration.WithLabelValues(r.Method, path))
		next.ServeHTTP(rw, r)
		timer.ObserveDuration()

		m.requestsTotal.WithLabelValues(r.Method, path, fmt.Sprintf("%d", rw.statusCode)).Inc()
	})
}

// RecordTransition counts an ownership transition attempt.
func (m *Metrics) RecordTransition(action string, applied bool) {
	outcome := "applied"
	if !applied {
		outcome = "rejected"
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}

// SetResourceCounts replaces the per-kind resource gauges.
func (m *Metrics) SetResourceCounts(counts map[ownership.Kind]int) {
	m.resources.Reset()
	for kind, n := range counts {
		m.resources.WithLabelValues(string(kind)).Set(float64(n))
	}
}

// AddAuditPruned counts removed transition records.
func (m *Metrics) AddAuditPruned(n int64) {
	if n > 0 {
		m.auditPruned.Add(float64(n))
	}
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
