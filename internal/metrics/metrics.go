// Package metrics provides Prometheus metrics for the service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	ImportsTotal     *prometheus.CounterVec
	SyncsTotal       *prometheus.CounterVec
	EvictionsTotal   prometheus.Counter
	RateLimitDenials *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	StorageUsedBytes prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ImportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repodock_imports_total",
				Help: "Total number of finished import jobs by outcome.",
			},
			[]string{"status"},
		),
		SyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repodock_syncs_total",
				Help: "Total number of finished sync operations by outcome.",
			},
			[]string{"status"},
		),
		EvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "repodock_evictions_total",
				Help: "Total number of repositories archived by the storage sweeper.",
			},
		),
		RateLimitDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repodock_rate_limit_denials_total",
				Help: "Total number of requests denied by the rate limiter, by endpoint.",
			},
			[]string{"endpoint"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "repodock_http_request_duration_seconds",
				Help:    "HTTP request duration by method, route, and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		StorageUsedBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "repodock_storage_used_bytes",
				Help: "Bytes of repository clone storage currently accounted for.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.ImportsTotal)
	reg.MustRegister(m.SyncsTotal)
	reg.MustRegister(m.EvictionsTotal)
	reg.MustRegister(m.RateLimitDenials)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.StorageUsedBytes)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordImport increments the import counter for an outcome.
func (m *Metrics) RecordImport(status string) {
	m.ImportsTotal.WithLabelValues(status).Inc()
}

// RecordSync increments the sync counter for an outcome.
func (m *Metrics) RecordSync(status string) {
	m.SyncsTotal.WithLabelValues(status).Inc()
}

// RecordEviction counts one archived repository.
func (m *Metrics) RecordEviction() {
	m.EvictionsTotal.Inc()
}

// RecordRateLimitDenial counts one denied request.
func (m *Metrics) RecordRateLimitDenial(endpoint string) {
	m.RateLimitDenials.WithLabelValues(endpoint).Inc()
}

// ObserveRequest records one HTTP request's duration.
func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}

// SetStorageUsed updates the storage gauge.
func (m *Metrics) SetStorageUsed(bytes int64) {
	m.StorageUsedBytes.Set(float64(bytes))
}
