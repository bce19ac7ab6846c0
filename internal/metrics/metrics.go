// Package metrics exposes Prometheus counters and gauges for the trading
// loop, served from the status API at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors
type Metrics struct {
	CyclesTotal       prometheus.Counter
	SignalsGenerated  *prometheus.CounterVec
	SignalsVetoed     *prometheus.CounterVec
	AdmissionRejected *prometheus.CounterVec
	TradesOpened      *prometheus.CounterVec
	TradesClosed      *prometheus.CounterVec
	OpenTrades        prometheus.Gauge
	DailyPnL          prometheus.Gauge
	DailyTradeCount   prometheus.Gauge
}

// New registers and returns the application metrics
func New() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contrarian",
			Name:      "cycles_total",
			Help:      "Evaluation cycles completed",
		}),
		SignalsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contrarian",
			Name:      "signals_generated_total",
			Help:      "Signals produced by the confluence scorer",
		}, []string{"symbol", "direction"}),
		SignalsVetoed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contrarian",
			Name:      "signals_vetoed_total",
			Help:      "Signals vetoed by the enhancer chain",
		}, []string{"symbol"}),
		AdmissionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contrarian",
			Name:      "admission_rejected_total",
			Help:      "Queue entries rejected by admission gates",
		}, []string{"reason"}),
		TradesOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contrarian",
			Name:      "trades_opened_total",
			Help:      "Positions opened",
		}, []string{"symbol", "direction"}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contrarian",
			Name:      "trades_closed_total",
			Help:      "Positions fully closed",
		}, []string{"symbol", "reason"}),
		OpenTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "contrarian",
			Name:      "open_trades",
			Help:      "Currently open positions",
		}),
		DailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "contrarian",
			Name:      "daily_pnl_usd",
			Help:      "Realized P&L for the current UTC day",
		}),
		DailyTradeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "contrarian",
			Name:      "daily_trade_count",
			Help:      "Trades opened during the current UTC day",
		}),
	}

	prometheus.MustRegister(
		m.CyclesTotal,
		m.SignalsGenerated,
		m.SignalsVetoed,
		m.AdmissionRejected,
		m.TradesOpened,
		m.TradesClosed,
		m.OpenTrades,
		m.DailyPnL,
		m.DailyTradeCount,
	)

	return m
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
