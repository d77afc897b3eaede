package strategy

import (
	"math"

	"vwap-ema-trader/internal/model"
)

// CheckEntry 检查做空入场信号
// window 为截至当前的低周期 K 线，vwap 和 ema 与 window 等长 (EMA 已对齐到低周期)
// 条件: 前一根收盘价严格位于 VWAP 与 EMA 之间 (盘整)，当前收盘价同时跌破 VWAP 和 EMA (破位)
func CheckEntry(window []model.Candle, vwap, ema []float64) bool {
	n := len(window)
	if n < 2 || len(vwap) < n || len(ema) < n {
		return false
	}

	prev, curr := window[n-2], window[n-1]
	vwapPrev, vwapCurr := vwap[n-2], vwap[n-1]
	emaPrev, emaCurr := ema[n-2], ema[n-1]

	// 预热不足时指标未定义，不产生信号
	for _, v := range []float64{vwapPrev, vwapCurr, emaPrev, emaCurr} {
		if !model.Defined(v) {
			return false
		}
	}

	// 1. 盘整: 前一根收盘价在 [min(VWAP, EMA), max(VWAP, EMA)] 区间内部
	lowerBand := math.Min(vwapPrev, emaPrev)
	upperBand := math.Max(vwapPrev, emaPrev)
	consolidating := prev.Close > lowerBand && prev.Close < upperBand

	// 2. 破位: 当前收盘价同时低于 VWAP 和 EMA
	breakdown := curr.Close < vwapCurr && curr.Close < emaCurr

	return consolidating && breakdown
}

// CheckExit 检查高周期反转摆动 (空头的平仓信号)
// 比较倒数第二根与倒数第三根 K 线的最高价，出现更高的高点即触发；最后一根可能尚未走完，不参与比较
func CheckExit(higherWindow []model.Candle) bool {
	n := len(higherWindow)
	if n < 3 {
		return false
	}
	lastHigh := higherWindow[n-2].High
	prevHigh := higherWindow[n-3].High
	return lastHigh > prevHigh
}
