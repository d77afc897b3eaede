package ta

import (
	"fmt"
	"time"

	"github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"vwap-ema-trader/internal/model"
)

// VWAP 计算累计成交量加权均价，价格取典型价 (H+L+C)/3
// anchor=session 时每个交易日 (loc 时区) 重新累计；累计成交量为 0 时未定义
func VWAP(series model.Series, anchor model.VWAPAnchor, loc *time.Location) model.IndicatorSeries {
	out := model.NewIndicatorSeries("VWAP", series.Index())
	if len(series) == 0 {
		return out
	}
	if loc == nil {
		loc = time.UTC
	}

	high := make([]float64, len(series))
	low := make([]float64, len(series))
	closes := make([]float64, len(series))
	for i, c := range series {
		high[i], low[i], closes[i] = c.High, c.Low, c.Close
	}
	typical := talib.TypPrice(high, low, closes)

	var sumPV, sumV float64
	var session time.Time
	for i, c := range series {
		if anchor == model.AnchorSession {
			y, m, d := c.Timestamp.In(loc).Date()
			day := time.Date(y, m, d, 0, 0, 0, 0, loc)
			if !day.Equal(session) {
				session = day
				sumPV, sumV = 0, 0
			}
		}
		sumPV += typical[i] * c.Volume
		sumV += c.Volume
		if sumV > 0 {
			out.Values[i] = sumPV / sumV
		}
	}
	return out
}

// EMA 计算收盘价的指数移动平均，α = 2/(length+1)
// 以前 length 根收盘价的简单平均作为种子 (下标 length-1)，之前的值未定义
func EMA(series model.Series, length int) model.IndicatorSeries {
	out := model.NewIndicatorSeries(fmt.Sprintf("EMA_%d", length), series.Index())
	if length <= 0 || len(series) < length {
		return out
	}
	// talib.Ema 在预热区间输出 0，这里保留 NaN 表示未定义
	ema := talib.Ema(series.Closes(), length)
	for i := length - 1; i < len(ema); i++ {
		out.Values[i] = ema[i]
	}
	return out
}

// Indicators 存储一次回测所需的全部序列，计算完成后只读
type Indicators struct {
	Lower      model.Series
	Higher     model.Series
	VWAP       model.IndicatorSeries // 低周期
	HigherEMA  model.IndicatorSeries // 高周期
	AlignedEMA model.IndicatorSeries // 前向填充到低周期索引
}

// Calculator 负责多周期数据的重采样、指标计算与对齐
type Calculator struct {
	EMALength      int
	HigherInterval time.Duration
	Anchor         model.VWAPAnchor
	Location       *time.Location
	Logger         *zap.Logger
}

// NewCalculator 初始化技术指标计算器
func NewCalculator(cfg model.BacktestConfig, logger *zap.Logger) *Calculator {
	return &Calculator{
		EMALength:      cfg.EMALength,
		HigherInterval: cfg.HigherInterval,
		Anchor:         cfg.VWAPAnchor,
		Location:       cfg.Location,
		Logger:         logger,
	}
}

// Compute 在低周期上计算 VWAP，在重采样后的高周期上计算 EMA，并把 EMA 对齐回低周期
func (tc *Calculator) Compute(lower model.Series) (*Indicators, error) {
	if tc.EMALength <= 0 {
		return nil, fmt.Errorf("ema length must be positive, got %d", tc.EMALength)
	}
	if tc.HigherInterval <= 0 {
		return nil, fmt.Errorf("higher interval must be positive, got %s", tc.HigherInterval)
	}

	higher := model.Resample(lower, tc.HigherInterval, tc.Location)
	ind := &Indicators{
		Lower:     lower,
		Higher:    higher,
		VWAP:      VWAP(lower, tc.Anchor, tc.Location),
		HigherEMA: EMA(higher, tc.EMALength),
	}
	ind.AlignedEMA = model.Align(ind.HigherEMA, lower.Index())

	if len(higher) < tc.EMALength {
		tc.Logger.Debug("Not enough higher-timeframe history for EMA warm-up",
			zap.Int("higher_candles", len(higher)), zap.Int("ema_length", tc.EMALength))
	}
	tc.Logger.Debug("Indicators computed",
		zap.Int("lower_candles", len(lower)),
		zap.Int("higher_candles", len(higher)),
		zap.String("ema", ind.HigherEMA.Name))
	return ind, nil
}
