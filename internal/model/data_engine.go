package model

import (
	"math"
	"time"
)

// KlineAggregator 将低周期 K 线聚合为一个高周期 K 线桶
type KlineAggregator struct {
	Current Candle // 正在构建的当前 K 线
	count   int
}

// Empty 当前桶是否还没有任何 K 线
func (agg *KlineAggregator) Empty() bool {
	return agg.count == 0
}

// Start 以 bucketStart 为基准开启新 K 线
func (agg *KlineAggregator) Start(bucketStart time.Time, c Candle) {
	agg.Current = Candle{
		Timestamp: bucketStart,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
	agg.count = 1
}

// Add 把一根低周期 K 线并入当前桶
func (agg *KlineAggregator) Add(c Candle) {
	agg.Current.Close = c.Close // 最后一根的收盘价作为收盘价
	agg.Current.High = math.Max(agg.Current.High, c.High)
	agg.Current.Low = math.Min(agg.Current.Low, c.Low)
	agg.Current.Volume += c.Volume
	agg.count++
}

// BucketStart 计算 ts 所属周期桶的起始时间
// 桶从 loc 时区的当日零点开始按 span 切分；span >= 24h 时按自然日切分
// span 需能整除 24h (如 5m、15m、1h)，否则每日零点的重新对齐会让跨日的桶边界不再等距
func BucketStart(ts time.Time, span time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := ts.In(loc)
	y, m, d := local.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if span <= 0 || span >= 24*time.Hour {
		return dayStart
	}
	elapsed := local.Sub(dayStart)
	return dayStart.Add(elapsed / span * span)
}

// Resample 将低周期序列按 span 重采样为高周期序列
// 每个桶: 首根开盘价、最高价、最低价、末根收盘价、成交量求和；没有 K 线的桶直接省略
func Resample(lower Series, span time.Duration, loc *time.Location) Series {
	out := make(Series, 0, len(lower)/2+1)
	agg := &KlineAggregator{}

	for _, c := range lower {
		bucket := BucketStart(c.Timestamp, span, loc)

		// 如果当前桶的起始时间早于这根 K 线所在的桶，说明之前的桶已完成
		if !agg.Empty() && !bucket.Equal(agg.Current.Timestamp) {
			out = append(out, agg.Current)
			agg.Start(bucket, c)
			continue
		}
		if agg.Empty() {
			agg.Start(bucket, c)
			continue
		}
		agg.Add(c)
	}
	if !agg.Empty() {
		out = append(out, agg.Current)
	}
	return out
}

// Align 将高周期指标前向填充到低周期时间索引上
// 对每个低周期时间戳，取高周期指标在 <= 该时间戳的最近一个值；在第一个高周期值之前为未定义
func Align(higher IndicatorSeries, lowerIndex []time.Time) IndicatorSeries {
	out := NewIndicatorSeries(higher.Name, lowerIndex)
	for i, ts := range lowerIndex {
		if v, ok := higher.At(ts); ok {
			out.Values[i] = v
		}
	}
	return out
}
