package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Order Execution Metrics
	orderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contestcore_order_execution_latency_milliseconds",
			Help:    "Order execution latency in milliseconds (p50, p95, p99)",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"order_type", "symbol", "contest_kind"},
	)

	orderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_orders_total",
			Help: "Total number of orders by type and status",
		},
		[]string{"order_type", "status", "contest_kind"},
	)

	orderRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_order_rejections_total",
			Help: "Total number of risk-policy order rejections by reason",
		},
		[]string{"order_type", "reason"},
	)

	// Position Metrics
	openPositions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "contestcore_open_positions",
			Help: "Number of open positions by symbol and side",
		},
		[]string{"symbol", "side"},
	)

	positionUnrealizedPnL = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "contestcore_position_unrealized_pnl_usd",
			Help: "Current unrealized P&L of a participant's positions in USD",
		},
		[]string{"contest_id", "symbol"},
	)

	positionClosesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_position_closes_total",
			Help: "Total positions closed by reason (user, stop_loss, take_profit, margin_call, contest_end)",
		},
		[]string{"reason"},
	)

	liquidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_liquidations_total",
			Help: "Total forced liquidations by contest kind",
		},
		[]string{"contest_kind"},
	)

	liquidationGateBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_liquidation_gate_blocks_total",
			Help: "Total liquidations refused by the price safety gate (fallback, stale, diverging)",
		},
		[]string{"gate_reason"},
	)

	// Contest Lifecycle Metrics
	activeContests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "contestcore_active_contests",
			Help: "Number of contests currently in a given status",
		},
		[]string{"status", "contest_kind"},
	)

	contestFinalizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_contest_finalizations_total",
			Help: "Total contests finalized by outcome",
		},
		[]string{"contest_kind", "outcome"},
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contestcore_scheduler_scan_duration_milliseconds",
			Help:    "Duration of a scheduler scan pass in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"scan_type"},
	)

	scanLockContentionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_scheduler_scan_lock_contention_total",
			Help: "Total scan ticks that skipped a contest because its scan lock was held",
		},
		[]string{"scan_type"},
	)

	// Ledger / Wallet Metrics
	walletTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_wallet_transactions_total",
			Help: "Total wallet ledger transactions by type and status",
		},
		[]string{"type", "status"},
	)

	prizePoolDistributedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_prize_pool_distributed_usd_total",
			Help: "Total prize amount distributed in USD",
		},
		[]string{"contest_kind"},
	)

	// Price Oracle Metrics
	oracleQuoteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contestcore_oracle_quote_latency_milliseconds",
			Help:    "Price oracle quote fetch latency in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"source"},
	)

	oracleFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_oracle_fallbacks_total",
			Help: "Total quotes served from a stale/fallback source",
		},
		[]string{"symbol", "reason"},
	)

	// Database Metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contestcore_db_query_duration_milliseconds",
			Help:    "Database query duration in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"operation", "table"},
	)

	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "contestcore_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// Event Bus Metrics
	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_events_published_total",
			Help: "Total domain events published to the event sink",
		},
		[]string{"event_type"},
	)

	// Runtime Metrics
	memoryUsageBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "contestcore_memory_usage_bytes",
			Help: "Current memory usage in bytes",
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "contestcore_goroutines_count",
			Help: "Current number of goroutines",
		},
	)

	// API Request Metrics
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contestcore_api_requests_total",
			Help: "Total API requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contestcore_api_request_duration_milliseconds",
			Help:    "API request duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"endpoint", "method"},
	)
)

// MetricsCollector handles metrics collection and exposure
type MetricsCollector struct {
	registry *prometheus.Registry
	mu       sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		registry: prometheus.DefaultRegisterer.(*prometheus.Registry),
	}
}

// Handler returns the HTTP handler for /metrics endpoint
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOrderExecution records order execution metrics.
func RecordOrderExecution(orderType, symbol, contestKind string, latencyMs float64, success bool) {
	orderLatency.WithLabelValues(orderType, symbol, contestKind).Observe(latencyMs)

	status := "filled"
	if !success {
		status = "rejected"
	}
	orderTotal.WithLabelValues(orderType, status, contestKind).Inc()
}

// RecordOrderRejection records a risk-policy rejection.
func RecordOrderRejection(orderType, reason string) {
	orderRejections.WithLabelValues(orderType, reason).Inc()
}

// SetOpenPositions sets the open position gauge for a symbol/side.
func SetOpenPositions(symbol, side string, count int) {
	openPositions.WithLabelValues(symbol, side).Set(float64(count))
}

// SetPositionUnrealizedPnL sets the unrealized P&L gauge for a contest/symbol pair.
func SetPositionUnrealizedPnL(contestID, symbol string, pnl float64) {
	positionUnrealizedPnL.WithLabelValues(contestID, symbol).Set(pnl)
}

// RecordPositionClose records a position close by reason.
func RecordPositionClose(reason string) {
	positionClosesTotal.WithLabelValues(reason).Inc()
}

// RecordLiquidation records a forced liquidation.
func RecordLiquidation(contestKind string) {
	liquidationsTotal.WithLabelValues(contestKind).Inc()
}

// RecordLiquidationGateBlock records the safety gate refusing a liquidation.
func RecordLiquidationGateBlock(gateReason string) {
	liquidationGateBlocksTotal.WithLabelValues(gateReason).Inc()
}

// SetActiveContests sets the contest-status gauge.
func SetActiveContests(status, contestKind string, count int) {
	activeContests.WithLabelValues(status, contestKind).Set(float64(count))
}

// RecordContestFinalization records a contest finalization outcome.
func RecordContestFinalization(contestKind, outcome string) {
	contestFinalizationsTotal.WithLabelValues(contestKind, outcome).Inc()
}

// RecordScanDuration records how long a scheduler scan pass took.
func RecordScanDuration(scanType string, durationMs float64) {
	scanDuration.WithLabelValues(scanType).Observe(durationMs)
}

// RecordScanLockContention records a scan tick skipped due to lock contention.
func RecordScanLockContention(scanType string) {
	scanLockContentionTotal.WithLabelValues(scanType).Inc()
}

// RecordWalletTransaction records a ledger transaction outcome.
func RecordWalletTransaction(txType, status string) {
	walletTransactionsTotal.WithLabelValues(txType, status).Inc()
}

// RecordPrizeDistributed records a prize payout amount.
func RecordPrizeDistributed(contestKind string, amount float64) {
	prizePoolDistributedTotal.WithLabelValues(contestKind).Add(amount)
}

// RecordOracleQuote records oracle quote latency.
func RecordOracleQuote(source string, latencyMs float64) {
	oracleQuoteLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordOracleFallback records a fallback/stale quote being served.
func RecordOracleFallback(symbol, reason string) {
	oracleFallbacksTotal.WithLabelValues(symbol, reason).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation, table string, durationMs float64) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(durationMs)
}

// SetDBConnections sets active database connections.
func SetDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// RecordEventPublished records a domain event publish.
func RecordEventPublished(eventType string) {
	eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// SetMemoryUsage sets memory usage.
func SetMemoryUsage(bytes uint64) {
	memoryUsageBytes.Set(float64(bytes))
}

// SetGoroutineCount sets goroutine count.
func SetGoroutineCount(count int) {
	goroutineCount.Set(float64(count))
}

// RecordAPIRequest records API request metrics.
func RecordAPIRequest(endpoint, method, status string, durationMs float64) {
	apiRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	apiRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

// APIRequestMiddleware wraps HTTP handlers to record metrics.
func APIRequestMiddleware(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(wrapped, r)

		duration := float64(time.Since(start).Milliseconds())
		RecordAPIRequest(endpoint, r.Method, http.StatusText(wrapped.statusCode), duration)
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
