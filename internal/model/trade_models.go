package model

import (
	"fmt"
	"time"
)

// TradeStatus 交易状态
type TradeStatus string

const (
	StatusOpen   TradeStatus = "open"
	StatusClosed TradeStatus = "closed"
)

// 平仓原因
const (
	ReasonStopLoss     = "Stop-Loss Hit"
	ReasonReverseSwing = "Reverse Swing Exit"
)

// VWAPAnchor 决定 VWAP 累计值何时重置
type VWAPAnchor string

const (
	AnchorSession VWAPAnchor = "session" // 每个交易日重置
	AnchorNone    VWAPAnchor = "none"    // 整个序列累计
)

// BacktestConfig 回测的全部输入参数，按值传入引擎，运行期间不可变
type BacktestConfig struct {
	Symbol      string
	StartDate   time.Time
	EndDate     time.Time
	Capital     float64
	RiskPercent float64 // 单笔风险占资金的百分比，例如 0.8 表示 0.8%
	SLPoints    float64 // 止损点数
	LotSize     int     // 每手合约对应的标的数量

	EMALength      int
	LowerInterval  time.Duration // 低周期，例如 5m
	HigherInterval time.Duration // 高周期，例如 15m
	VWAPAnchor     VWAPAnchor
	Location       *time.Location
	Exchange       string
	InstrumentType string
}

// Validate 检查配置是否可以运行
func (c BacktestConfig) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("end date %s is before start date %s",
			c.EndDate.Format(time.DateOnly), c.StartDate.Format(time.DateOnly))
	}
	if c.LowerInterval <= 0 || c.HigherInterval <= 0 {
		return fmt.Errorf("intervals must be positive (lower=%s, higher=%s)", c.LowerInterval, c.HigherInterval)
	}
	if c.HigherInterval < c.LowerInterval {
		return fmt.Errorf("higher interval %s is finer than lower interval %s", c.HigherInterval, c.LowerInterval)
	}
	if c.EMALength <= 0 {
		return fmt.Errorf("ema length must be positive, got %d", c.EMALength)
	}
	return nil
}

// WindowEnd 返回回测区间的右边界 (结束日期当天的最后一刻)
func (c BacktestConfig) WindowEnd() time.Time {
	return c.EndDate.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Trade 记录一笔空头交易，开仓后原地修改，平仓后追加到交易日志
type Trade struct {
	Symbol         string
	EntryTime      time.Time
	EntryPrice     float64
	PositionSize   int // 手数
	LotSize        int
	SLPrice        float64
	BreakevenPrice float64 // 1:1 盈亏比目标，触及后止损移至开仓价
	SLAtBreakeven  bool
	Status         TradeStatus

	ExitTime  time.Time
	ExitPrice float64
	Reason    string
	PnL       float64 // 仅在 Status == closed 时有效
}

// Quantity 返回持仓的标的数量
func (t *Trade) Quantity() float64 {
	return float64(t.PositionSize * t.LotSize)
}

// UnrealizedPnL 按给定价格计算浮动盈亏 (空头: 价格下跌盈利)
func (t *Trade) UnrealizedPnL(mark float64) float64 {
	return (t.EntryPrice - mark) * t.Quantity()
}

// Close 以给定价格平仓并计算已实现盈亏
func (t *Trade) Close(exitTime time.Time, exitPrice float64, reason string) {
	t.ExitTime = exitTime
	t.ExitPrice = exitPrice
	t.Reason = reason
	t.Status = StatusClosed
	t.PnL = (t.EntryPrice - t.ExitPrice) * t.Quantity()
}

func (t *Trade) String() string {
	if t.Status == StatusClosed {
		return fmt.Sprintf("TRADE [%s | SHORT] %s @ %.2f -> %s @ %.2f | Lots: %d | PnL: %.2f | %s",
			t.Symbol, t.EntryTime.Format(time.DateTime), t.EntryPrice,
			t.ExitTime.Format(time.DateTime), t.ExitPrice, t.PositionSize, t.PnL, t.Reason)
	}
	return fmt.Sprintf("TRADE [%s | SHORT] %s @ %.2f | Lots: %d | SL: %.2f | BE: %.2f | open",
		t.Symbol, t.EntryTime.Format(time.DateTime), t.EntryPrice, t.PositionSize, t.SLPrice, t.BreakevenPrice)
}
