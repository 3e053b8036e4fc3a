// Package metrics registers the bot's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_ticks_total", Help: "Completed orchestration cycles"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_signals_total", Help: "Strategy signals emitted"},
		[]string{"symbol", "signal"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_orders_total", Help: "Orders submitted to the broker"},
		[]string{"symbol", "side"},
	)
	SymbolErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_symbol_errors_total", Help: "Per-symbol failures isolated during a tick"},
		[]string{"symbol"},
	)
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_tick_duration_seconds",
			Help:    "Wall time of one full orchestration cycle",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, SignalsTotal, OrdersTotal, SymbolErrorsTotal, TickDuration)
}
