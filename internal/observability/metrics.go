package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	backendOperationsTotal *prometheus.CounterVec
	backendFallbacksTotal  *prometheus.CounterVec
	backendMode            *prometheus.GaugeVec
	uploadLatencySeconds   prometheus.Histogram
	uploadRejectedTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the portal.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of portal HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_latency_seconds",
			Help:    "Latency distribution for portal HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_errors_total",
			Help: "Total number of error responses returned by the portal.",
		}, []string{"method", "route", "status"})

		backendOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_backend_operations_total",
			Help: "Record operations by kind, operation, serving backend and outcome.",
		}, []string{"kind", "op", "backend", "outcome"})

		backendFallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_backend_fallbacks_total",
			Help: "Document store calls that were answered by the flat files instead.",
		}, []string{"kind", "op"})

		backendMode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portal_backend_state",
			Help: "Current backend selector state (1 for the active state).",
		}, []string{"state"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_upload_latency_seconds",
			Help:    "Latency of uploads to the blob store.",
			Buckets: prometheus.DefBuckets,
		})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_upload_rejected_total",
			Help: "Uploads rejected by reason.",
		}, []string{"reason"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			backendOperationsTotal,
			backendFallbacksTotal,
			backendMode,
			uploadLatencySeconds,
			uploadRejectedTotal,
		)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// BackendOperations exposes the record operation counter.
func BackendOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return backendOperationsTotal
}

// BackendFallbacks exposes the fallback counter.
func BackendFallbacks() *prometheus.CounterVec {
	RegisterMetrics()
	return backendFallbacksTotal
}

// SetBackendState marks state as the active selector state and clears the rest.
func SetBackendState(state string) {
	RegisterMetrics()
	backendMode.Reset()
	backendMode.WithLabelValues(state).Set(1)
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// UploadRejected exposes the rejected upload counter.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}
