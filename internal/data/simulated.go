package data

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vwap-ema-trader/internal/model"
)

// NSE 现货交易时段 (本地时间)
const (
	sessionOpenHour    = 9
	sessionOpenMinute  = 15
	sessionCloseHour   = 15
	sessionCloseMinute = 30
)

// SimulatedProvider 用带种子的随机游走生成交易时段内的 K 线，相同参数总是得到相同的序列
type SimulatedProvider struct {
	Seed       int64
	StartPrice float64
	Volatility float64 // 每根 K 线收益率的标准差，例如 0.001
	logger     *zap.Logger
}

func NewSimulatedProvider(seed int64, startPrice float64, logger *zap.Logger) *SimulatedProvider {
	if startPrice <= 0 {
		startPrice = 45000
	}
	return &SimulatedProvider{
		Seed:       seed,
		StartPrice: startPrice,
		Volatility: 0.001,
		logger:     logger,
	}
}

// FetchHistory 生成 [Start, End] 内每个工作日 09:15-15:30 的 K 线
func (p *SimulatedProvider) FetchHistory(ctx context.Context, req Request) (model.Series, error) {
	if req.Interval <= 0 {
		return nil, fmt.Errorf("simulated provider: interval must be positive, got %s", req.Interval)
	}

	rng := rand.New(rand.NewSource(p.Seed))
	loc := req.Start.Location()
	price := p.StartPrice

	y, m, d := req.Start.Date()
	var out model.Series
	for day := time.Date(y, m, d, 0, 0, 0, 0, loc); !day.After(req.End); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		open := time.Date(day.Year(), day.Month(), day.Day(), sessionOpenHour, sessionOpenMinute, 0, 0, loc)
		closeAt := time.Date(day.Year(), day.Month(), day.Day(), sessionCloseHour, sessionCloseMinute, 0, 0, loc)
		for ts := open; ts.Before(closeAt); ts = ts.Add(req.Interval) {
			c := p.next(rng, ts, price)
			price = c.Close
			if ts.Before(req.Start) || ts.After(req.End) {
				continue
			}
			out = append(out, c)
		}
	}

	p.logger.Debug("Generated simulated history",
		zap.String("request", req.String()),
		zap.Int("candles", len(out)),
		zap.Int64("seed", p.Seed))
	return finalize(out, req)
}

// next 以上一根收盘价为开盘价生成下一根 K 线
func (p *SimulatedProvider) next(rng *rand.Rand, ts time.Time, prevClose float64) model.Candle {
	sigma := prevClose * p.Volatility
	open := prevClose
	closePrice := math.Max(open+rng.NormFloat64()*sigma, 0.05)
	high := math.Max(open, closePrice) + math.Abs(rng.NormFloat64())*sigma/2
	low := math.Max(math.Min(open, closePrice)-math.Abs(rng.NormFloat64())*sigma/2, 0.05)

	return model.Candle{
		Timestamp: ts,
		Open:      roundTick(open),
		High:      roundTick(high),
		Low:       roundTick(low),
		Close:     roundTick(closePrice),
		Volume:    float64(1000 + rng.Intn(9000)),
	}
}

// roundTick 价格保留两位小数
func roundTick(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
