package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the transport-level Prometheus metrics shared across
// handlers. Module-specific metrics live in their own metrics packages.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

// New creates and registers the shared HTTP metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecocert_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "path", "status"}),
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ecocert_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		}, []string{"method", "path", "status"}),
	}
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.RequestDuration.With(labels).Observe(d.Seconds())
	m.RequestsTotal.With(labels).Inc()
}
