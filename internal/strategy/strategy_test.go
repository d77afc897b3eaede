package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vwap-ema-trader/internal/model"
	"vwap-ema-trader/internal/service"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func closes(start time.Time, step time.Duration, values ...float64) []model.Candle {
	out := make([]model.Candle, len(values))
	for i, v := range values {
		out[i] = model.Candle{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      v,
			High:      v + 0.5,
			Low:       v - 0.5,
			Close:     v,
			Volume:    100,
		}
	}
	return out
}

func highs(values ...float64) []model.Candle {
	start := time.Date(2023, 1, 2, 9, 15, 0, 0, ist)
	out := make([]model.Candle, len(values))
	for i, h := range values {
		out[i] = model.Candle{Timestamp: start.Add(time.Duration(i) * 15 * time.Minute), High: h, Low: h - 2, Close: h - 1}
	}
	return out
}

func TestCheckEntry_ConsolidationThenBreakdown(t *testing.T) {
	start := time.Date(2023, 1, 2, 9, 15, 0, 0, ist)
	window := closes(start, 5*time.Minute, 102, 101.5, 101.7, 99)
	vwap := []float64{101.8, 101.7, 101.6, 101.5}
	ema := []float64{101.9, 101.9, 101.8, 101.8}

	assert.True(t, CheckEntry(window, vwap, ema))
	// 只看最后两根
	assert.False(t, CheckEntry(window[:3], vwap[:3], ema[:3]))
}

func TestCheckEntry_PreviousCloseOutsideBand(t *testing.T) {
	start := time.Date(2023, 1, 2, 9, 15, 0, 0, ist)
	vwap := []float64{101.8, 101.7, 101.6, 101.5}
	ema := []float64{101.9, 101.9, 101.8, 101.8}

	// 101.2 在 [101.6, 101.8] 之外，不算盘整
	below := closes(start, 5*time.Minute, 102, 101.5, 101.2, 99)
	assert.False(t, CheckEntry(below, vwap, ema))

	// 区间边界不算在内部
	onBand := closes(start, 5*time.Minute, 102, 101.5, 101.6, 99)
	assert.False(t, CheckEntry(onBand, vwap, ema))
}

func TestCheckEntry_BreakdownMustClearBothLines(t *testing.T) {
	start := time.Date(2023, 1, 2, 9, 15, 0, 0, ist)
	vwap := []float64{101.0, 101.0}
	ema := []float64{102.0, 100.0}

	// 收盘价低于 VWAP 但高于 EMA
	window := closes(start, 5*time.Minute, 101.5, 100.5)
	assert.False(t, CheckEntry(window, vwap, ema))

	window = closes(start, 5*time.Minute, 101.5, 99.5)
	assert.True(t, CheckEntry(window, vwap, ema))
}

func TestCheckEntry_UndefinedIndicators(t *testing.T) {
	start := time.Date(2023, 1, 2, 9, 15, 0, 0, ist)
	window := closes(start, 5*time.Minute, 101.7, 99)

	assert.False(t, CheckEntry(window, []float64{101.6, 101.5}, []float64{model.Undefined, 101.8}))
	assert.False(t, CheckEntry(window, []float64{101.6, math.NaN()}, []float64{101.8, 101.8}))
	assert.False(t, CheckEntry(window[:1], []float64{101.6}, []float64{101.8}))
	assert.False(t, CheckEntry(window, []float64{101.6}, []float64{101.8, 101.8}), "short indicator slice")
}

func TestCheckExit(t *testing.T) {
	assert.False(t, CheckExit(highs(101, 99, 100)))
	assert.False(t, CheckExit(highs(99, 97, 100)))
	assert.True(t, CheckExit(highs(97, 99, 100)))

	// 最后一根 K 线不参与比较
	assert.False(t, CheckExit(highs(99, 97, 200)))
	// 相等不算更高的高点
	assert.False(t, CheckExit(highs(99, 99, 100)))

	assert.False(t, CheckExit(nil))
	assert.False(t, CheckExit(highs(97, 99)))
}

func TestSizePosition(t *testing.T) {
	assert.Equal(t, 1, SizePosition(100000, 0.8, 50, 15))
	assert.Equal(t, 2, SizePosition(200000, 0.8, 50, 15))
	assert.Equal(t, 13, SizePosition(1000000, 1, 50, 15))
	assert.Equal(t, 10, SizePosition(750000, 1, 50, 15))

	// 资金不足一手
	assert.Equal(t, 0, SizePosition(50000, 0.8, 50, 15))

	assert.Equal(t, 0, SizePosition(100000, 0.8, 0, 15))
	assert.Equal(t, 0, SizePosition(100000, 0.8, -5, 15))
	assert.Equal(t, 0, SizePosition(100000, 0.8, 50, 0))
	assert.Equal(t, 0, SizePosition(100000, 0, 50, 15))
	assert.Equal(t, 0, SizePosition(0, 0.8, 50, 15))
}

func TestSizePosition_Monotonic(t *testing.T) {
	prev := 0
	for capital := 10000.0; capital <= 2000000; capital += 37500 {
		lots := SizePosition(capital, 0.8, 50, 15)
		assert.GreaterOrEqual(t, lots, prev, "capital=%.0f", capital)
		assert.GreaterOrEqual(t, lots, 0)
		prev = lots
	}

	prev = math.MaxInt
	for sl := 10.0; sl <= 500; sl += 10 {
		lots := SizePosition(1000000, 1, sl, 15)
		assert.LessOrEqual(t, lots, prev, "sl=%.0f", sl)
		prev = lots
	}
}

func testConfig() model.BacktestConfig {
	return model.BacktestConfig{
		Symbol:         "BANKNIFTY",
		Capital:        100000,
		RiskPercent:    0.8,
		SLPoints:       50,
		LotSize:        15,
		EMALength:      25,
		LowerInterval:  5 * time.Minute,
		HigherInterval: 15 * time.Minute,
		VWAPAnchor:     model.AnchorSession,
		Location:       ist,
	}
}

func bar(ts time.Time, high, low, close float64) model.Candle {
	return model.Candle{Timestamp: ts, Open: close, High: high, Low: low, Close: close, Volume: 100}
}

func TestStateMachine_BreakevenThenStop(t *testing.T) {
	metrics := service.NewMetrics()
	sm := NewStateMachine(testConfig(), zap.NewNop(), metrics)
	require.Equal(t, StateFlat, sm.State())

	t0 := time.Date(2023, 1, 2, 10, 0, 0, 0, ist)
	require.True(t, sm.Open(bar(t0, 45010, 44990, 45000)))
	require.Equal(t, StateOpen, sm.State())

	trade := sm.OpenTrade()
	require.NotNil(t, trade)
	assert.Equal(t, 1, trade.PositionSize)
	assert.Equal(t, 45050.0, trade.SLPrice)
	assert.Equal(t, 44950.0, trade.BreakevenPrice)
	assert.False(t, trade.SLAtBreakeven)

	// 触及 1:1 目标，止损移至开仓价
	closed := sm.Manage(bar(t0.Add(5*time.Minute), 45020, 44940, 44960), nil)
	assert.Nil(t, closed)
	assert.True(t, trade.SLAtBreakeven)
	assert.Equal(t, 45000.0, trade.SLPrice)

	closed = sm.Manage(bar(t0.Add(10*time.Minute), 45010, 44970, 45005), nil)
	require.NotNil(t, closed)
	assert.Equal(t, model.ReasonStopLoss, closed.Reason)
	assert.Equal(t, 45000.0, closed.ExitPrice)
	assert.Equal(t, 0.0, closed.PnL)
	assert.Equal(t, StateFlat, sm.State())
	assert.Nil(t, sm.OpenTrade())
	require.Len(t, sm.ClosedTrades(), 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BreakevenArmed))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TradesClosed.WithLabelValues(model.ReasonStopLoss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EntrySignals.WithLabelValues(EntryOpened)))
}

func TestStateMachine_StopLossTakesPriority(t *testing.T) {
	sm := NewStateMachine(testConfig(), zap.NewNop(), nil)
	t0 := time.Date(2023, 1, 2, 10, 0, 0, 0, ist)
	require.True(t, sm.Open(bar(t0, 45010, 44990, 45000)))

	// 同一根 K 线既触及止损又触及目标，还有反转信号: 只按止损处理
	closed := sm.Manage(bar(t0.Add(5*time.Minute), 45060, 44900, 44950), highs(97, 99, 100))
	require.NotNil(t, closed)
	assert.Equal(t, model.ReasonStopLoss, closed.Reason)
	assert.Equal(t, 45050.0, closed.ExitPrice)
	assert.Equal(t, -750.0, closed.PnL)
	assert.False(t, closed.SLAtBreakeven)
	assert.Less(t, closed.PnL, 0.0)
}

func TestStateMachine_ReverseSwingExit(t *testing.T) {
	sm := NewStateMachine(testConfig(), zap.NewNop(), nil)
	t0 := time.Date(2023, 1, 2, 10, 0, 0, 0, ist)
	require.True(t, sm.Open(bar(t0, 45010, 44990, 45000)))

	assert.Nil(t, sm.Manage(bar(t0.Add(5*time.Minute), 45020, 44960, 44980), highs(101, 99, 100)))

	closed := sm.Manage(bar(t0.Add(10*time.Minute), 44990, 44900, 44920), highs(97, 99, 100))
	require.NotNil(t, closed)
	assert.Equal(t, model.ReasonReverseSwing, closed.Reason)
	assert.Equal(t, 44920.0, closed.ExitPrice)
	assert.True(t, closed.SLAtBreakeven)
	assert.InDelta(t, 80*15, closed.PnL, 1e-9)
	assert.True(t, closed.ExitTime.After(closed.EntryTime))
}

func TestStateMachine_ZeroSizeSkipsTrade(t *testing.T) {
	cfg := testConfig()
	cfg.Capital = 50000
	metrics := service.NewMetrics()
	sm := NewStateMachine(cfg, zap.NewNop(), metrics)

	t0 := time.Date(2023, 1, 2, 10, 0, 0, 0, ist)
	assert.False(t, sm.Open(bar(t0, 45010, 44990, 45000)))
	assert.Equal(t, StateFlat, sm.State())
	assert.Nil(t, sm.OpenTrade())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EntrySignals.WithLabelValues(EntrySkipped)))
}

func TestStateMachine_SinglePosition(t *testing.T) {
	sm := NewStateMachine(testConfig(), zap.NewNop(), nil)
	t0 := time.Date(2023, 1, 2, 10, 0, 0, 0, ist)
	require.True(t, sm.Open(bar(t0, 45010, 44990, 45000)))
	assert.False(t, sm.Open(bar(t0.Add(5*time.Minute), 44990, 44900, 44950)))
	assert.Equal(t, 45000.0, sm.OpenTrade().EntryPrice)

	// FLAT 时 Manage 不做任何事
	flat := NewStateMachine(testConfig(), zap.NewNop(), nil)
	assert.Nil(t, flat.Manage(bar(t0, 99999, 0, 1), highs(97, 99, 100)))
}
