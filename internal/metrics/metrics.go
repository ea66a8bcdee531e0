// Package metrics exposes Prometheus instrumentation for the trading loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one strategy instance. All collectors
// carry symbol and strategy labels so multiple processes can share one
// scrape target.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal      *prometheus.CounterVec
	TickErrors      *prometheus.CounterVec
	SignalsTotal    *prometheus.CounterVec
	OrdersTotal     *prometheus.CounterVec
	OrderFailures   *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec
	PositionSize    *prometheus.GaugeVec
	EquityUSD       *prometheus.GaugeVec
	TickDuration    *prometheus.HistogramVec
}

// New creates and registers the collector set on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_ticks_total",
			Help: "Completed evaluation ticks.",
		}, []string{"symbol", "strategy"}),
		TickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_tick_errors_total",
			Help: "Ticks that ended in an error.",
		}, []string{"symbol", "strategy"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Non-NONE signals emitted, by action.",
		}, []string{"symbol", "strategy", "action"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Orders confirmed filled, by action.",
		}, []string{"symbol", "strategy", "action"}),
		OrderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_order_failures_total",
			Help: "Order submissions that failed definitively.",
		}, []string{"symbol", "strategy"}),
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_reconciliations_total",
			Help: "Position reconciliations that found a mismatch.",
		}, []string{"symbol", "strategy"}),
		PositionSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trader_position_contracts",
			Help: "Open position size in contracts, signed by direction.",
		}, []string{"symbol", "strategy"}),
		EquityUSD: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trader_wallet_equity_usd",
			Help: "Last observed wallet balance in USD.",
		}, []string{"symbol", "strategy"}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trader_tick_duration_seconds",
			Help:    "Wall time of one full tick including order submission.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"symbol", "strategy"}),
	}

	registry.MustRegister(
		m.TicksTotal, m.TickErrors, m.SignalsTotal, m.OrdersTotal,
		m.OrderFailures, m.Reconciliations, m.PositionSize, m.EquityUSD,
		m.TickDuration,
	)

	return m
}

// Handler returns the scrape handler for this collector set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
