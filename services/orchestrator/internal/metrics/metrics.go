// Package metrics exposes the orchestrator's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RoundTransitions *prometheus.CounterVec
	BidsAccepted     *prometheus.CounterVec
	Denials          *prometheus.CounterVec
	Computations     *prometheus.CounterVec
	LedgerVerifyFail prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RoundTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tdrlane_round_transitions_total",
			Help: "Successful round state transitions by target state.",
		}, []string{"workflow", "to"}),
		BidsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tdrlane_bids_accepted_total",
			Help: "Bids persisted by kind and action.",
		}, []string{"kind", "action"}),
		Denials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tdrlane_gate_denials_total",
			Help: "Gating engine denials by reason.",
		}, []string{"reason"}),
		Computations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tdrlane_computations_total",
			Help: "External matching/settlement computations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		LedgerVerifyFail: factory.NewCounter(prometheus.CounterOpts{
			Name: "tdrlane_ledger_verify_failures_total",
			Help: "Ledger chains that failed verification.",
		}),
	}
}

// Nil-safe helpers so the engine can run without a registry in tests.

func (m *Metrics) Transition(workflow, to string) {
	if m != nil {
		m.RoundTransitions.WithLabelValues(workflow, to).Inc()
	}
}

func (m *Metrics) Bid(kind, action string) {
	if m != nil {
		m.BidsAccepted.WithLabelValues(kind, action).Inc()
	}
}

func (m *Metrics) Denied(reason string) {
	if m != nil {
		m.Denials.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Computation(kind, outcome string) {
	if m != nil {
		m.Computations.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) VerifyFailed() {
	if m != nil {
		m.LedgerVerifyFail.Inc()
	}
}
