package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for inspection submissions.
type Metrics struct {
	Evaluations      *prometheus.CounterVec
	RejectedInputs   *prometheus.CounterVec
	FailedChecks     *prometheus.CounterVec
	SubmitDuration   prometheus.Histogram
	ThresholdVersion prometheus.Gauge
}

// New registers the inspection metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emissions_evaluations_total",
			Help: "Inspection evaluations by fuel type and outcome",
		}, []string{"fuel_type", "outcome"}),
		RejectedInputs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emissions_rejected_submissions_total",
			Help: "Submissions rejected before evaluation, by reason",
		}, []string{"reason"}),
		FailedChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emissions_failed_checks_total",
			Help: "Individual limit checks that failed",
		}, []string{"check"}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "emissions_submit_duration_seconds",
			Help:    "Duration of inspection submissions including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ThresholdVersion: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "emissions_threshold_version",
			Help: "Threshold snapshot version used by the most recent evaluation",
		}),
	}
}

// ObserveEvaluation records one evaluated submission.
func (m *Metrics) ObserveEvaluation(fuel, outcome string, failures []string, version int64) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(fuel, outcome).Inc()
	for _, check := range failures {
		m.FailedChecks.WithLabelValues(check).Inc()
	}
	m.ThresholdVersion.Set(float64(version))
}

// IncrementRejected records a submission rejected as malformed or unresolvable.
func (m *Metrics) IncrementRejected(reason string) {
	if m == nil {
		return
	}
	m.RejectedInputs.WithLabelValues(reason).Inc()
}

// ObserveSubmit records the duration of a submission.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	if m == nil {
		return
	}
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}
