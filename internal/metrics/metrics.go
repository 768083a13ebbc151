// Package metrics exposes Prometheus metrics for the scalping engine,
// generalized from the teacher's metrics.go (same CounterVec/GaugeVec shape,
// same init()-time registration, same label-switch helper pattern) onto the
// option-scalper's own series.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scalper_orders_total",
			Help: "Orders placed, by mode and side.",
		},
		[]string{"mode", "side"},
	)

	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scalper_decisions_total",
			Help: "Entry decisions taken, by symbol and direction.",
		},
		[]string{"symbol", "direction"},
	)

	SessionPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scalper_session_pnl_rupees",
			Help: "Running session total P&L.",
		},
	)

	ExitReasonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scalper_exit_reasons_total",
			Help: "Exits split by rule that triggered them.",
		},
		[]string{"reason", "symbol"},
	)

	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scalper_open_positions",
			Help: "Number of currently open option positions.",
		},
	)

	WSReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scalper_ws_reconnects_total",
			Help: "Count of websocket reconnect attempts.",
		},
	)

	TicksDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scalper_ticks_dropped_total",
			Help: "Ticks dropped by the cache or stream manager, by reason.",
		},
		[]string{"reason"},
	)

	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scalper_session_state",
			Help: "SessionGuard state indicator (1 for the active state, 0 otherwise).",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(OrdersTotal, DecisionsTotal, SessionPnL)
	prometheus.MustRegister(ExitReasonsTotal, OpenPositions)
	prometheus.MustRegister(WSReconnectsTotal, TicksDroppedTotal)
	prometheus.MustRegister(SessionState)
}

// SetSessionState flips the session-state gauge vector so exactly one label
// reads 1, mirroring the teacher's SetModelModeMetric flip pattern.
func SetSessionState(states []string, active string) {
	for _, s := range states {
		if s == active {
			SessionState.WithLabelValues(s).Set(1)
		} else {
			SessionState.WithLabelValues(s).Set(0)
		}
	}
}
