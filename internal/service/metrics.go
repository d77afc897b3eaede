package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 回测运行的计数器，批处理结束后可通过 WriteTextfile 导出
type Metrics struct {
	Registry *prometheus.Registry

	CandlesProcessed prometheus.Counter
	EntrySignals     *prometheus.CounterVec // outcome: opened | skipped
	TradesClosed     *prometheus.CounterVec // reason
	BreakevenArmed   prometheus.Counter
	RealizedPnL      prometheus.Gauge
	TradePnL         prometheus.Histogram
}

// NewMetrics 在独立的 Registry 上注册所有指标，避免多次回测之间互相污染
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CandlesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "backtest_candles_processed_total",
			Help: "Number of lower-timeframe candles replayed",
		}),
		EntrySignals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_entry_signals_total",
			Help: "Entry signals by outcome",
		}, []string{"outcome"}),
		TradesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_trades_closed_total",
			Help: "Closed trades by close reason",
		}, []string{"reason"}),
		BreakevenArmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "backtest_breakeven_armed_total",
			Help: "Number of times the stop was moved to entry",
		}),
		RealizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_realized_pnl",
			Help: "Sum of realized PnL of closed trades",
		}),
		TradePnL: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_trade_pnl",
			Help:    "Distribution of realized PnL per trade",
			Buckets: []float64{-5000, -2000, -1000, -500, 0, 500, 1000, 2000, 5000},
		}),
	}
}

// WriteTextfile 以 node_exporter textfile 格式写出指标
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
