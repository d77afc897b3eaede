package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"vwap-ema-trader/internal/model"
	"vwap-ema-trader/internal/service"
)

// PostgresProvider 从 market_klines 表读取 K 线
type PostgresProvider struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresProvider 建立连接池；调用方负责 Close
func NewPostgresProvider(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresProvider, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres provider: empty dsn (set Data.PostgresDSN)")
	}
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresProvider{pool: pool, logger: logger}, nil
}

func (p *PostgresProvider) Close() {
	p.pool.Close()
}

func (p *PostgresProvider) FetchHistory(ctx context.Context, req Request) (model.Series, error) {
	period := service.FormatInterval(req.Interval)
	rows, err := p.pool.Query(ctx, `
		SELECT time, open, high, low, close, volume
		FROM market_klines
		WHERE symbol = $1 AND exchange = $2 AND period = $3 AND time >= $4 AND time <= $5
		ORDER BY time ASC`,
		normalizeSymbol(req.Symbol), req.Exchange, period, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("query market_klines: %w", err)
	}
	defer rows.Close()

	loc := req.Start.Location()
	var out model.Series
	for rows.Next() {
		var (
			ts time.Time
			c  model.Candle
		)
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan market_klines: %w", err)
		}
		c.Timestamp = ts.In(loc)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market_klines: %w", err)
	}

	p.logger.Debug("Loaded postgres history", zap.String("request", req.String()), zap.Int("rows", len(out)))
	return finalize(out, req)
}
