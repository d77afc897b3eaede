package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 默认的模拟行情
const DefaultSimulatedSpot = 45000.0

var DefaultSimulatedStrikes = []float64{44800, 44900, 45000, 45100, 45200}

// SimulatedBroker 在内存中按当前报价成交，用于测试和演练
type SimulatedBroker struct {
	logger *zap.Logger

	mu      sync.RWMutex
	quotes  map[string]float64
	strikes []float64
	orders  []OrderRecord
	now     func() time.Time
}

// OrderRecord 模拟成交记录
type OrderRecord struct {
	Request OrderRequest
	Result  OrderResult
}

func NewSimulatedBroker(logger *zap.Logger) *SimulatedBroker {
	return &SimulatedBroker{
		logger:  logger,
		quotes:  make(map[string]float64),
		strikes: append([]float64(nil), DefaultSimulatedStrikes...),
		now:     time.Now,
	}
}

// SetQuote 设置某个标的的模拟价格
func (b *SimulatedBroker) SetQuote(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[strings.ToUpper(symbol)] = price
}

// SetStrikes 替换模拟期权链
func (b *SimulatedBroker) SetStrikes(strikes []float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.strikes = append([]float64(nil), strikes...)
}

func (b *SimulatedBroker) GetQuote(_ context.Context, symbol string) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if p, ok := b.quotes[strings.ToUpper(symbol)]; ok {
		return p, nil
	}
	return DefaultSimulatedSpot, nil
}

func (b *SimulatedBroker) GetOptionChain(_ context.Context, _ string, _ string) ([]float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]float64(nil), b.strikes...), nil
}

// PlaceOrder 立即以限价 (或市价单时的当前报价) 全部成交
func (b *SimulatedBroker) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("sim rejected: quantity must be positive, got %d", req.Quantity)
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return nil, fmt.Errorf("sim rejected: unknown side %q", req.Side)
	}

	price := req.Price
	if price <= 0 {
		q, err := b.GetQuote(ctx, req.Symbol)
		if err != nil {
			return nil, err
		}
		price = q
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	res := OrderResult{
		OrderID:     uuid.NewString(),
		Status:      "FILLED",
		FilledPrice: price,
		FilledAt:    b.now(),
	}
	b.orders = append(b.orders, OrderRecord{Request: req, Result: res})

	b.logger.Info("Sim ORDER FILLED",
		zap.String("order_id", res.OrderID),
		zap.String("side", string(req.Side)),
		zap.String("symbol", req.Symbol),
		zap.Int("quantity", req.Quantity),
		zap.Float64("price", price))
	return &res, nil
}

// Orders 返回成交记录的副本
func (b *SimulatedBroker) Orders() []OrderRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]OrderRecord, len(b.orders))
	copy(out, b.orders)
	return out
}
