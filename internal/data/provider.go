package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vwap-ema-trader/internal/model"
)

// ErrNoData 表示数据源在请求区间内没有任何 K 线
var ErrNoData = errors.New("no data available")

// Request 描述一次历史 K 线请求
type Request struct {
	Symbol         string
	Exchange       string
	InstrumentType string
	Start          time.Time // 包含
	End            time.Time // 包含
	Interval       time.Duration
}

func (r Request) String() string {
	return fmt.Sprintf("%s:%s:%s [%s, %s] %s", r.Exchange, r.InstrumentType, r.Symbol,
		r.Start.Format(time.DateTime), r.End.Format(time.DateTime), r.Interval)
}

// Provider 是历史数据来源的通用接口，回测引擎只依赖这个接口
type Provider interface {
	// FetchHistory 返回按时间升序排列的 K 线；区间内没有数据时返回 ErrNoData
	FetchHistory(ctx context.Context, req Request) (model.Series, error)
}

// Source 数据源名称
const (
	SourceSimulated  = "simulated"
	SourceCSV        = "csv"
	SourcePostgres   = "postgres"
	SourceClickHouse = "clickhouse"
)

// finalize 校验序列并把空结果转换为 ErrNoData
func finalize(series model.Series, req Request) (model.Series, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, req)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("invalid history for %s: %w", req.Symbol, err)
	}
	return series, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// candleFromStrings 用 decimal 解析 open/high/low/close/volume 文本
func candleFromStrings(ts time.Time, fields ...string) (model.Candle, error) {
	var vals [5]float64
	for i, s := range fields {
		d, err := decimal.NewFromString(strings.Trim(strings.TrimSpace(s), `"`))
		if err != nil {
			return model.Candle{}, fmt.Errorf("column %d: %w", i+2, err)
		}
		vals[i] = d.InexactFloat64()
	}
	return model.Candle{Timestamp: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}
