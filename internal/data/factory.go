package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vwap-ema-trader/internal/service"
)

// NewProvider 按 DataConfig.Source 构造数据源，返回的 closer 总是非 nil
func NewProvider(ctx context.Context, cfg service.DataConfig, loc *time.Location, logger *zap.Logger) (Provider, func(), error) {
	noop := func() {}
	source := strings.ToLower(strings.TrimSpace(cfg.Source))
	logger = logger.With(zap.String("source", source))

	switch source {
	case SourceSimulated, "":
		return NewSimulatedProvider(cfg.Seed, cfg.StartPrice, logger), noop, nil
	case SourceCSV:
		return NewCSVProvider(cfg.CSVDir, loc, logger), noop, nil
	case SourcePostgres:
		p, err := NewPostgresProvider(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, noop, err
		}
		return p, p.Close, nil
	case SourceClickHouse:
		p, err := NewClickHouseProvider(ctx, ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePass,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Warn("Failed to close clickhouse connection", zap.Error(err))
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("unsupported data source %q (want simulated|csv|postgres|clickhouse)", cfg.Source)
	}
}
