package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vwap-ema-trader/internal/service"
)

// DhanExecutor 是 Dhan 券商的实盘执行器，目前只校验凭证，所有交易调用返回 ErrLiveTradingUnsupported
type DhanExecutor struct {
	cfg    service.BrokerConfig
	logger *zap.Logger
}

// NewDhanExecutor 在任何网络操作之前校验凭证
func NewDhanExecutor(cfg service.BrokerConfig, logger *zap.Logger) (*DhanExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DhanExecutor{cfg: cfg, logger: logger.With(zap.String("broker", "dhan"))}, nil
}

func (e *DhanExecutor) PlaceOrder(_ context.Context, req OrderRequest) (*OrderResult, error) {
	e.logger.Warn("Order routing is not connected", zap.String("symbol", req.Symbol), zap.String("side", string(req.Side)))
	return nil, fmt.Errorf("dhan place order %s: %w", req.Symbol, ErrLiveTradingUnsupported)
}

func (e *DhanExecutor) GetQuote(_ context.Context, symbol string) (float64, error) {
	return 0, fmt.Errorf("dhan quote %s: %w", symbol, ErrLiveTradingUnsupported)
}

func (e *DhanExecutor) GetOptionChain(_ context.Context, symbol, expiry string) ([]float64, error) {
	return nil, fmt.Errorf("dhan option chain %s %s: %w", symbol, expiry, ErrLiveTradingUnsupported)
}
