package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the certification workflow.
// Tracks transition counts per outcome and the durations of review-path
// operations.
type Metrics struct {
	RequestsSubmitted  prometheus.Counter
	RequestsApproved   prometheus.Counter
	RequestsRejected   prometheus.Counter
	RequestsCancelled  prometheus.Counter
	CertificatesIssued prometheus.Counter
	TransitionDuration prometheus.Histogram
}

// New creates a Metrics instance with all workflow metrics registered.
func New() *Metrics {
	return &Metrics{
		RequestsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecocert_requests_submitted_total",
			Help: "Total number of certification requests submitted, including resubmissions",
		}),
		RequestsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecocert_requests_approved_total",
			Help: "Total number of certification requests approved",
		}),
		RequestsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecocert_requests_rejected_total",
			Help: "Total number of certification requests rejected",
		}),
		RequestsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecocert_requests_cancelled_total",
			Help: "Total number of certification requests cancelled",
		}),
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecocert_certificates_issued_total",
			Help: "Total number of certificates issued",
		}),
		TransitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecocert_workflow_transition_duration_seconds",
			Help:    "Duration of workflow transitions (review critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveTransition records the duration of a workflow transition.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}
