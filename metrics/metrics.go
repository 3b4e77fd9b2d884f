// Package metrics holds the prometheus instruments for the risk
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_evaluations_total",
		Help: "Gate evaluations by overall result.",
	}, []string{"result"})

	GateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_gate_failures_total",
		Help: "Individual gate failures by gate name.",
	}, []string{"gate"})

	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_reservations_total",
		Help: "Reservation state transitions.",
	}, []string{"status"})

	SessionRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskgate_session_remaining_dollars",
		Help: "Remaining budget of the active session.",
	})
)
