// Package monitoring collects Prometheus metrics for the service.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Collectors are registered on a
// private registry so independent instances can coexist in tests.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsKilled  prometheus.Counter
	CommandsTotal   prometheus.Counter
	OutputBytes     prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),
		registry:  reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "termhub_sessions_active",
			Help: "Number of registered terminal sessions",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "termhub_sessions_created_total",
			Help: "Total number of terminal sessions created",
		}),
		SessionsKilled: factory.NewCounter(prometheus.CounterOpts{
			Name: "termhub_sessions_killed_total",
			Help: "Total number of terminal sessions killed",
		}),
		CommandsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "termhub_commands_total",
			Help: "Total number of line commands recorded",
		}),
		OutputBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "termhub_output_bytes_total",
			Help: "Total filtered output bytes buffered across sessions",
		}),

		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "termhub_uptime_seconds",
			Help: "Service uptime in seconds",
		}),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the /metrics endpoint handler. Uptime is refreshed on
// each scrape.
func (m *Metrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
		inner.ServeHTTP(w, r)
	})
}
