package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for issuance and registration.
type Metrics struct {
	Outcomes       *prometheus.CounterVec
	StepFailures   *prometheus.CounterVec
	ConfirmLatency prometheus.Histogram
}

// New registers issuance collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credledger_issuance_outcomes_total",
			Help: "Issuance and registration outcomes by transaction kind and status",
		}, []string{"kind", "status"}),
		StepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credledger_issuance_step_failures_total",
			Help: "Failed issuance requests by the step that failed",
		}, []string{"step"}),
		ConfirmLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "credledger_issuance_confirm_seconds",
			Help:    "Time spent waiting for ledger finality",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
}

func (m *Metrics) IncOutcome(kind, status string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) IncStepFailure(step string) {
	if m == nil {
		return
	}
	m.StepFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) ObserveConfirm(d time.Duration) {
	if m == nil {
		return
	}
	m.ConfirmLatency.Observe(d.Seconds())
}
