package sim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики движка симуляции.
// Экспортируются через GET /metrics, дашборды в Grafana.

// TickToFillLatency - время от прихода тика до завершения исполнения ордера
var TickToFillLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "cryptosim",
		Subsystem: "sim",
		Name:      "tick_to_fill_latency_ms",
		Help:      "Latency from ticker arrival to order fill commit in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	},
	[]string{"symbol"},
)

// OrdersFilled - исполненные ордера по типу и стороне
var OrdersFilled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptosim",
		Subsystem: "sim",
		Name:      "orders_filled_total",
		Help:      "Total number of simulated orders filled",
	},
	[]string{"type", "side"},
)

// OrdersCancelled - отменённые ордера (пользователем и компенсационные)
var OrdersCancelled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptosim",
		Subsystem: "sim",
		Name:      "orders_cancelled_total",
		Help:      "Total number of simulated orders cancelled",
	},
	[]string{"reason"},
)

// AlertsTriggered - сработавшие ценовые алерты
var AlertsTriggered = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cryptosim",
		Subsystem: "sim",
		Name:      "alerts_triggered_total",
		Help:      "Total number of price alerts triggered",
	},
)

// TicksProcessed - обработанные тики
var TicksProcessed = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cryptosim",
		Subsystem: "sim",
		Name:      "ticks_processed_total",
		Help:      "Total number of ticker updates evaluated",
	},
)

// RelayStateGauge - текущее состояние источника рыночных данных
// (0=disconnected, 1=connecting, 2=relay-connected, 3=degraded)
var RelayStateGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cryptosim",
		Subsystem: "marketdata",
		Name:      "relay_state",
		Help:      "Market data source state (0=disconnected, 1=connecting, 2=relay, 3=degraded)",
	},
)
