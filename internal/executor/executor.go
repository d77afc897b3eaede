package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrLiveTradingUnsupported 表示实盘下单尚未接入
var ErrLiveTradingUnsupported = errors.New("live trading is not implemented")

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderRequest 下单请求，Price 为 0 表示市价单
type OrderRequest struct {
	Symbol   string
	Exchange string
	Side     Side
	Quantity int
	Price    float64
	Tag      string
}

// OrderResult 下单结果
type OrderResult struct {
	OrderID     string
	Status      string
	FilledPrice float64
	FilledAt    time.Time
}

// Broker 是券商能力的通用接口，负责与券商通信
type Broker interface {
	// 提交订单
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)

	// 查询标的最新价格
	GetQuote(ctx context.Context, symbol string) (float64, error)

	// 查询某个到期日的全部行权价
	GetOptionChain(ctx context.Context, symbol, expiry string) ([]float64, error)
}

// ATMOption 找到最接近现价的行权价，返回平值看跌期权代码 SYMBOL_EXPIRY_STRIKE_PE
func ATMOption(ctx context.Context, b Broker, symbol, expiry string) (string, error) {
	spot, err := b.GetQuote(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("get quote %s: %w", symbol, err)
	}
	strikes, err := b.GetOptionChain(ctx, symbol, expiry)
	if err != nil {
		return "", fmt.Errorf("get option chain %s %s: %w", symbol, expiry, err)
	}
	if len(strikes) == 0 {
		return "", fmt.Errorf("empty option chain for %s %s", symbol, expiry)
	}

	// 距离相同时取先出现的行权价
	atm := strikes[0]
	for _, k := range strikes[1:] {
		if math.Abs(k-spot) < math.Abs(atm-spot) {
			atm = k
		}
	}
	return fmt.Sprintf("%s_%s_%s_PE", symbol, expiry, strconv.FormatFloat(atm, 'f', -1, 64)), nil
}
