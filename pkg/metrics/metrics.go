// Package metrics exposes Prometheus instrumentation for the HTTP API and
// the profiling engine. All collectors live in a private registry so tests
// and embedders never collide with the global default registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "veracity"

// Rejection reasons for the uploads_rejected_total counter. They mirror the
// screening steps in pkg/ingest.
const (
	ReasonExtension = "extension"
	ReasonSize      = "size"
	ReasonStructure = "structure"
	ReasonContent   = "content"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is a valid no-op
// receiver so callers can leave instrumentation unwired in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	profilesGeneratedTotal prometheus.Counter
	anomaliesDetectedTotal prometheus.Counter
	validationsRunTotal    prometheus.Counter
	comparisonsRunTotal    prometheus.Counter
	uploadsRejectedTotal   *prometheus.CounterVec
	advisoryRequestsTotal  *prometheus.CounterVec
}

// New creates the collector set and registers it with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		profilesGeneratedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profiles_generated_total",
				Help:      "Total number of quality profiles generated",
			},
		),
		anomaliesDetectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anomalies_detected_total",
				Help:      "Total number of anomalous rows flagged by isolation forest",
			},
		),
		validationsRunTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_run_total",
				Help:      "Total number of rule validation runs",
			},
		),
		comparisonsRunTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "comparisons_run_total",
				Help:      "Total number of drift comparisons",
			},
		),
		uploadsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_rejected_total",
				Help:      "Total number of uploads rejected by screening, by step",
			},
			[]string{"reason"},
		),
		advisoryRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advisory_requests_total",
				Help:      "Total number of AI advisory calls, by operation and outcome",
			},
			[]string{"operation", "status"},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.profilesGeneratedTotal,
		m.anomaliesDetectedTotal,
		m.validationsRunTotal,
		m.comparisonsRunTotal,
		m.uploadsRejectedTotal,
		m.advisoryRequestsTotal,
	)

	return m
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments requests with the counter and duration histogram.
// The route label uses the ServeMux pattern that matched (bounded
// cardinality), never the raw URL path. The scrape endpoint itself is not
// recorded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// ServeMux fills in r.Pattern while routing, so it is readable here.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordProfileGenerated counts one completed profiling run.
func (m *Metrics) RecordProfileGenerated() {
	if m == nil {
		return
	}
	m.profilesGeneratedTotal.Inc()
}

// RecordAnomaliesDetected adds the number of rows flagged in a profiling run.
func (m *Metrics) RecordAnomaliesDetected(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.anomaliesDetectedTotal.Add(float64(count))
}

// RecordValidationRun counts one rule validation pass over a dataset.
func (m *Metrics) RecordValidationRun() {
	if m == nil {
		return
	}
	m.validationsRunTotal.Inc()
}

// RecordComparisonRun counts one drift comparison between two datasets.
func (m *Metrics) RecordComparisonRun() {
	if m == nil {
		return
	}
	m.comparisonsRunTotal.Inc()
}

// RecordUploadRejected counts a screening rejection. Use the Reason*
// constants for the reason label.
func (m *Metrics) RecordUploadRejected(reason string) {
	if m == nil {
		return
	}
	m.uploadsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordAdvisoryRequest counts an AI advisory call outcome. Operation is one
// of analyze_quality, suggest_rules, explain_issue; status is ok or error.
func (m *Metrics) RecordAdvisoryRequest(operation, status string) {
	if m == nil {
		return
	}
	m.advisoryRequestsTotal.WithLabelValues(operation, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}
