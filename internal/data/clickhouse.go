package data

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"vwap-ema-trader/internal/model"
	"vwap-ema-trader/internal/service"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseProvider 从 <Database>.ohlcv_raw 读取 K 线 (open_time_ms 为毫秒时间戳)
type ClickHouseProvider struct {
	conn     driver.Conn
	database string
	logger   *zap.Logger
}

func NewClickHouseProvider(ctx context.Context, cfg ClickHouseConfig, logger *zap.Logger) (*ClickHouseProvider, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("clickhouse provider: empty address (set Data.ClickHouseAddr)")
	}
	if cfg.Database == "" {
		cfg.Database = "backtest"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &ClickHouseProvider{conn: conn, database: cfg.Database, logger: logger}, nil
}

func (p *ClickHouseProvider) Close() error {
	return p.conn.Close()
}

func (p *ClickHouseProvider) FetchHistory(ctx context.Context, req Request) (model.Series, error) {
	q := fmt.Sprintf(`
SELECT open_time_ms, toString(open), toString(high), toString(low), toString(close), toString(volume_base)
FROM %s.ohlcv_raw
WHERE symbol = ? AND interval = ? AND open_time_ms BETWEEN ? AND ?
ORDER BY open_time_ms`, p.database)

	rows, err := p.conn.Query(ctx, q, normalizeSymbol(req.Symbol), service.FormatInterval(req.Interval),
		uint64(req.Start.UnixMilli()), uint64(req.End.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("query ohlcv_raw: %w", err)
	}
	defer rows.Close()

	loc := req.Start.Location()
	var out model.Series
	for rows.Next() {
		var (
			ot            uint64
			o, h, l, c, v string
		)
		if err := rows.Scan(&ot, &o, &h, &l, &c, &v); err != nil {
			return nil, fmt.Errorf("scan ohlcv_raw: %w", err)
		}
		candle, err := candleFromStrings(time.UnixMilli(int64(ot)).In(loc), o, h, l, c, v)
		if err != nil {
			return nil, fmt.Errorf("ohlcv_raw row %d: %w", ot, err)
		}
		out = append(out, candle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ohlcv_raw: %w", err)
	}

	p.logger.Debug("Loaded clickhouse history", zap.String("request", req.String()), zap.Int("rows", len(out)))
	return finalize(out, req)
}
