package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ScrapesTotal       *prometheus.CounterVec
	ScrapeDuration     *prometheus.HistogramVec
	ProxyRequestsTotal *prometheus.CounterVec
	TelemetryErrors    *prometheus.CounterVec
	RetryAttemptsTotal *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the metrics on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScrapesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_attempts_total",
			Help: "Fetch engine invocations by source, outcome and error kind.",
		}, []string{"source", "status", "error_kind"}),
		ScrapeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_attempt_duration_seconds",
			Help:    "Duration of fetch engine invocations.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"source"}),
		ProxyRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_proxy_requests_total",
			Help: "Network attempts routed through a proxy by outcome.",
		}, []string{"status"}),
		TelemetryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_telemetry_write_errors_total",
			Help: "Telemetry rows that could not be written.",
		}, []string{"stream"}),
		RetryAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_retry_operations_total",
			Help: "Retry orchestrator operations by final state.",
		}, []string{"state"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

// ObserveScrape records one fetch engine invocation.
func (m *Metrics) ObserveScrape(source, status, errorKind string, d time.Duration) {
	m.ScrapesTotal.WithLabelValues(source, status, errorKind).Inc()
	m.ScrapeDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) IncProxyRequest(status string) {
	m.ProxyRequestsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncTelemetryError(stream string) {
	m.TelemetryErrors.WithLabelValues(stream).Inc()
}

func (m *Metrics) IncRetryOutcome(state string) {
	m.RetryAttemptsTotal.WithLabelValues(state).Inc()
}
