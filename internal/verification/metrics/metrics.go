package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification results.
const (
	ResultValid    = "valid"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
)

type Metrics struct {
	Verifications      *prometheus.CounterVec
	ContentUnavailable prometheus.Counter
	BreakerOpen        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credledger_verifications_total",
			Help: "Credential verifications by result",
		}, []string{"result"}),
		ContentUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "credledger_verification_content_unavailable_total",
			Help: "Verifications answered without credential content",
		}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "credledger_content_breaker_open",
			Help: "1 while the content store circuit breaker is open",
		}),
	}
}

func (m *Metrics) IncVerification(result string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncContentUnavailable() {
	if m == nil {
		return
	}
	m.ContentUnavailable.Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
