// Package metrics provides Prometheus instrumentation for the portfolio engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts accepted trades, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side"})

	// TradeVolume tracks cumulative traded shares per symbol.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_trade_volume_shares_total",
		Help: "Cumulative trade volume in shares",
	}, []string{"symbol", "side"})

	// CashFlowsTotal counts accepted deposits and withdrawals.
	CashFlowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_cash_flows_total",
		Help: "Total number of deposits and withdrawals",
	}, []string{"direction"})

	// RejectionsTotal counts business rejections by operation and reason.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_rejections_total",
		Help: "Operations rejected by ledger rules",
	}, []string{"op", "reason"})

	// OperationLatency tracks ledger operation latency, including the save.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradesim_operation_latency_seconds",
		Help:    "Ledger operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// SaveFailures counts snapshot saves that returned an error.
	SaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradesim_save_failures_total",
		Help: "Snapshot saves that failed",
	})

	// CashBalance is the current cash balance.
	CashBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesim_cash_balance",
		Help: "Current cash balance",
	})

	// OpenHoldings is the number of symbols currently held.
	OpenHoldings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesim_open_holdings",
		Help: "Number of open holdings",
	})

	// Hydrated is 1 once the ledger has been loaded from storage.
	Hydrated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesim_ledger_hydrated",
		Help: "1 once the ledger has been hydrated from storage",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesim_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradesim_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern uses the chi route pattern to keep label cardinality bounded
// (e.g. /api/v1/quotes/{symbol} instead of one series per symbol).
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so WebSocket upgrades
// work behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
