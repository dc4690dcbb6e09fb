// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	QuotesProcessed  *prometheus.CounterVec
	CandlesCompleted *prometheus.CounterVec
	StaleSymbols     prometheus.Gauge
	FeedReconnects   prometheus.Counter

	// Signal metrics
	SignalsEvaluated prometheus.Counter
	SignalsSkipped   *prometheus.CounterVec
	SignalsTradeable *prometheus.CounterVec

	// Engine metrics
	TradesOpened    *prometheus.CounterVec
	TradesClosed    *prometheus.CounterVec
	OpenTrades      prometheus.Gauge
	StopUpdates     *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	KillSwitchFired prometheus.Counter

	// Broker metrics
	OrdersSubmitted *prometheus.CounterVec
	OrderErrors     *prometheus.CounterVec
	BrokerLatency   *prometheus.HistogramVec

	// Reconciler metrics
	OrphansClosed   prometheus.Counter
	ExternalAdopted prometheus.Counter
	StalePositions  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastQuoteTimestamp  prometheus.Gauge
	LastCandleTimestamp prometheus.Gauge
	UptimeSeconds       prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "squeezebot"
	}

	return &Metrics{
		// Feed metrics
		QuotesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "quotes_processed_total",
			Help:      "Total number of quotes processed by symbol",
		}, []string{"symbol"}),
		CandlesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "candles_completed_total",
			Help:      "Total number of completed candles by symbol",
		}, []string{"symbol"}),
		StaleSymbols: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "stale_symbols",
			Help:      "Number of symbols with stale market data",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of quote stream reconnects",
		}),

		// Signal metrics
		SignalsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "evaluations_total",
			Help:      "Total number of cascade evaluations",
		}),
		SignalsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "skips_total",
			Help:      "Total number of skipped evaluations by reason",
		}, []string{"reason"}),
		SignalsTradeable: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "tradeable_total",
			Help:      "Total number of tradeable signals by direction",
		}, []string{"direction"}),

		// Engine metrics
		TradesOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_opened_total",
			Help:      "Total number of trades opened by direction",
		}, []string{"direction"}),
		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_closed_total",
			Help:      "Total number of trades closed by exit reason",
		}, []string{"reason"}),
		OpenTrades: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "open_trades",
			Help:      "Number of currently open trades",
		}),
		StopUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "stop_updates_total",
			Help:      "Total number of trailing stop ratchets by method",
		}, []string{"method"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped from a full queue",
		}),
		KillSwitchFired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "kill_switch_total",
			Help:      "Total number of kill switch activations",
		}),

		// Broker metrics
		OrdersSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "orders_submitted_total",
			Help:      "Total number of orders submitted by action",
		}, []string{"action"}),
		OrderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "order_errors_total",
			Help:      "Total number of order errors by type",
		}, []string{"error_type"}),
		BrokerLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "call_latency_seconds",
			Help:      "Broker call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		// Reconciler metrics
		OrphansClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "orphans_closed_total",
			Help:      "Total number of local positions closed as not found at broker",
		}),
		ExternalAdopted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "external_adopted_total",
			Help:      "Total number of broker positions adopted as external",
		}),
		StalePositions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "stale_positions_total",
			Help:      "Total number of stale positions swept",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastQuoteTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_quote_timestamp",
			Help:      "Unix timestamp of the last quote received",
		}),
		LastCandleTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_candle_timestamp",
			Help:      "Unix timestamp of the last completed candle",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordQuote increments the quotes processed counter.
func RecordQuote(symbol string) {
	DefaultMetrics.QuotesProcessed.WithLabelValues(symbol).Inc()
}

// RecordCandle increments the completed candle counter.
func RecordCandle(symbol string) {
	DefaultMetrics.CandlesCompleted.WithLabelValues(symbol).Inc()
}

// RecordSignal records one cascade evaluation and its outcome.
func RecordSignal(direction, skipReason string) {
	DefaultMetrics.SignalsEvaluated.Inc()
	if skipReason != "" {
		DefaultMetrics.SignalsSkipped.WithLabelValues(skipReason).Inc()
		return
	}
	DefaultMetrics.SignalsTradeable.WithLabelValues(direction).Inc()
}

// RecordTradeOpened increments the opened trade counter and gauge.
func RecordTradeOpened(direction string) {
	DefaultMetrics.TradesOpened.WithLabelValues(direction).Inc()
	DefaultMetrics.OpenTrades.Inc()
}

// RecordTradeClosed increments the closed trade counter and decrements the gauge.
func RecordTradeClosed(reason string) {
	DefaultMetrics.TradesClosed.WithLabelValues(reason).Inc()
	DefaultMetrics.OpenTrades.Dec()
}

// RecordStopUpdate increments the stop ratchet counter for a method.
func RecordStopUpdate(method string) {
	DefaultMetrics.StopUpdates.WithLabelValues(method).Inc()
}

// RecordOrder records an order submission and its error class, if any.
func RecordOrder(action, errorType string) {
	DefaultMetrics.OrdersSubmitted.WithLabelValues(action).Inc()
	if errorType != "" {
		DefaultMetrics.OrderErrors.WithLabelValues(errorType).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
