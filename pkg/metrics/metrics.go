package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors the onboarding backend exports.
// All methods are safe on a nil receiver so callers can skip wiring in tests.
type Metrics struct {
	gatherer prometheus.Gatherer

	stageTransitions  *prometheus.CounterVec
	paymentPolls      *prometheus.CounterVec
	activePolls       prometheus.Gauge
	bootstraps        *prometheus.CounterVec
	displayIDFallback prometheus.Counter
}

// New registers the collectors on reg. Pass a fresh prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberhub",
			Name:      "onboarding_stage_transitions_total",
			Help:      "Onboarding stage completions by the stage reached.",
		}, []string{"stage"}),
		paymentPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberhub",
			Name:      "payment_polls_total",
			Help:      "Payment gateway status polls by result.",
		}, []string{"result"}),
		activePolls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "memberhub",
			Name:      "payment_polls_active",
			Help:      "Payment poll loops currently running in this process.",
		}),
		bootstraps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberhub",
			Name:      "reconciliation_bootstrap_total",
			Help:      "Member profile bootstrap outcomes.",
		}, []string{"outcome"}),
		displayIDFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memberhub",
			Name:      "display_id_fallback_total",
			Help:      "Display ids issued through the unverified timestamp fallback.",
		}),
	}
	reg.MustRegister(m.stageTransitions, m.paymentPolls, m.activePolls, m.bootstraps, m.displayIDFallback)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) StageReached(stage string) {
	if m == nil {
		return
	}
	m.stageTransitions.WithLabelValues(stage).Inc()
}

func (m *Metrics) PaymentPolled(result string) {
	if m == nil {
		return
	}
	m.paymentPolls.WithLabelValues(result).Inc()
}

func (m *Metrics) PollStarted() {
	if m == nil {
		return
	}
	m.activePolls.Inc()
}

func (m *Metrics) PollStopped() {
	if m == nil {
		return
	}
	m.activePolls.Dec()
}

func (m *Metrics) Bootstrap(outcome string) {
	if m == nil {
		return
	}
	m.bootstraps.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DisplayIDFallback() {
	if m == nil {
		return
	}
	m.displayIDFallback.Inc()
}
