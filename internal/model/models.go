package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrUnsortedSeries 表示 K 线序列的时间戳不是严格递增的
var ErrUnsortedSeries = errors.New("series timestamps must be strictly increasing")

// Candle 代表一根不可变的 K 线 (OHLCV)
type Candle struct {
	Timestamp time.Time // K 线起始时间
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Series 是按时间升序排列的 K 线序列
type Series []Candle

// Validate 检查时间戳严格递增 (不允许重复)
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Timestamp.After(s[i-1].Timestamp) {
			return fmt.Errorf("%w: index %d (%s) after %s", ErrUnsortedSeries,
				i, s[i].Timestamp.Format(time.RFC3339), s[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Index 返回时间戳序列，供对齐使用
func (s Series) Index() []time.Time {
	out := make([]time.Time, len(s))
	for i, c := range s {
		out[i] = c.Timestamp
	}
	return out
}

// IndexAtOrBefore 二分查找最后一根时间戳 <= ts 的 K 线下标，没有则返回 -1
func (s Series) IndexAtOrBefore(ts time.Time) int {
	n := sort.Search(len(s), func(i int) bool { return s[i].Timestamp.After(ts) })
	return n - 1
}

// UpTo 返回时间戳 <= ts 的前缀切片 (不复制)
func (s Series) UpTo(ts time.Time) Series {
	return s[:s.IndexAtOrBefore(ts)+1]
}

// Between 返回 [from, to] 闭区间内的 K 线
func (s Series) Between(from, to time.Time) Series {
	start := sort.Search(len(s), func(i int) bool { return !s[i].Timestamp.Before(from) })
	end := s.IndexAtOrBefore(to) + 1
	if start >= end {
		return Series{}
	}
	return s[start:end]
}

// Closes 提取收盘价
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Undefined 表示指标在该位置尚未定义 (预热不足或成交量为零)
var Undefined = math.NaN()

// Defined 判断指标值是否有效
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// IndicatorSeries 是时间戳到指标值的映射，按时间升序存储
type IndicatorSeries struct {
	Name   string
	Times  []time.Time
	Values []float64
}

// NewIndicatorSeries 创建一个全部未定义的指标序列
func NewIndicatorSeries(name string, times []time.Time) IndicatorSeries {
	values := make([]float64, len(times))
	for i := range values {
		values[i] = Undefined
	}
	return IndicatorSeries{Name: name, Times: times, Values: values}
}

func (is IndicatorSeries) Len() int {
	return len(is.Values)
}

// At 返回时间戳 <= ts 的最近一个值 (前向填充)，未定义时 ok=false
func (is IndicatorSeries) At(ts time.Time) (float64, bool) {
	n := sort.Search(len(is.Times), func(i int) bool { return is.Times[i].After(ts) })
	if n == 0 {
		return Undefined, false
	}
	v := is.Values[n-1]
	return v, Defined(v)
}
