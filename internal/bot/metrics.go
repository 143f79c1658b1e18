package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики сканера автоторговли
// ============================================================
//
// Отказы ордеров подписчику не сообщаются, поэтому видны только
// здесь и в логах (order_errors_total, fetch_failures_total).

// ============ Метрики тиков ============

// TicksTotal - завершённые тики сканера
var TicksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "ticks_total",
		Help:      "Total number of scan ticks",
	},
	[]string{"result"}, // ok, failed
)

// TickDuration - длительность одного тика
var TickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "tick_duration_ms",
		Help:      "Duration of a full scan tick in milliseconds",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	},
)

// SubscribersScanned - подписчики, просмотренные в последнем тике
var SubscribersScanned = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "subscribers_scanned",
		Help:      "Number of subscribers with autotrade enabled in the last tick",
	},
)

// ScanState - текущее состояние сканера (1 у активного состояния)
var ScanState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "scan_state",
		Help:      "Current scanner state (1 for the active state)",
	},
	[]string{"state"},
)

// ============ Рыночные данные и сигналы ============

// CandleFetchLatency - время загрузки свечей с учётом повторов
var CandleFetchLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "autotrader",
		Subsystem: "exchange",
		Name:      "candle_fetch_latency_ms",
		Help:      "Time to fetch candles in milliseconds, retries included",
		Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	},
	[]string{"exchange"},
)

// FetchFailures - неудачные чтения по причине
var FetchFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "fetch_failures_total",
		Help:      "Failed market data reads by reason",
	},
	[]string{"reason"}, // no_data, timeout, rejected
)

// SignalsTotal - оценённые сигналы по направлению
var SignalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "signals_total",
		Help:      "Evaluated signals by verdict",
	},
	[]string{"verdict"}, // BUY, SELL, none
)

// CooldownSkips - пары, пропущенные из-за кулдауна
var CooldownSkips = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "cooldown_skips_total",
		Help:      "Symbols skipped because of an active cooldown",
	},
)

// ============ Риск ============

// RiskRejections - отказы риск-гейта по причине
var RiskRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "risk",
		Name:      "rejections_total",
		Help:      "Orders refused by the risk gate",
	},
	[]string{"reason"},
)

// ============ Ордера ============

// OrdersTotal - отправленные ордера
var OrdersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "orders_total",
		Help:      "Total number of market orders",
	},
	[]string{"symbol", "side", "result"}, // result: success, failed
)

// OrderErrors - ошибки исполнителя по этапу
var OrderErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "order_errors_total",
		Help:      "Order executor errors by stage",
	},
	[]string{"stage"}, // ticker, sizing, leverage, order, persist
)

// OrderExecutionLatency - время ответа биржи на ордер
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "order_execution_latency_ms",
		Help:      "Time to execute order on exchange in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"exchange", "side"},
)

// ============ Вспомогательные функции ============

// RecordOrder записывает результат ордера
func RecordOrder(symbol, side string, success bool) {
	result := "failed"
	if success {
		result = "success"
	}
	OrdersTotal.WithLabelValues(symbol, side, result).Inc()
}

// RecordTick записывает итог тика
func RecordTick(durationMs float64, failed bool) {
	result := "ok"
	if failed {
		result = "failed"
	}
	TicksTotal.WithLabelValues(result).Inc()
	TickDuration.Observe(durationMs)
}

// RecordScanState выставляет 1 активному состоянию и 0 остальным
func RecordScanState(state string) {
	for s := range ValidTransitions {
		if s == state {
			ScanState.WithLabelValues(s).Set(1)
		} else {
			ScanState.WithLabelValues(s).Set(0)
		}
	}
}
