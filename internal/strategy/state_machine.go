package strategy

import (
	"time"

	"go.uber.org/zap"

	"vwap-ema-trader/internal/model"
	"vwap-ema-trader/internal/service"
)

// StateMachine 管理单一空头仓位的生命周期: FLAT -> OPEN -> FLAT
// 同一时刻最多只有一笔持仓；持仓记录只由状态机创建、修改和平仓
type StateMachine struct {
	cfg     model.BacktestConfig
	logger  *zap.Logger
	metrics *service.Metrics

	state  PositionState
	trade  *model.Trade
	closed []*model.Trade // 已平仓的交易日志 (只追加)
}

// NewStateMachine 初始化状态机，初始状态为 FLAT；metrics 可以为 nil
func NewStateMachine(cfg model.BacktestConfig, logger *zap.Logger, metrics *service.Metrics) *StateMachine {
	return &StateMachine{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		state:   StateFlat,
	}
}

// State 返回当前状态
func (sm *StateMachine) State() PositionState {
	return sm.state
}

// OpenTrade 返回当前持仓 (FLAT 时为 nil)
func (sm *StateMachine) OpenTrade() *model.Trade {
	return sm.trade
}

// ClosedTrades 返回已平仓交易日志
func (sm *StateMachine) ClosedTrades() []*model.Trade {
	return sm.closed
}

// Open 在入场信号触发时开空仓: FLAT -> OPEN
// 手数为 0 时跳过本次交易，保持 FLAT
func (sm *StateMachine) Open(candle model.Candle) bool {
	if sm.state != StateFlat {
		sm.logger.Warn("Received entry signal, but already holding a position.",
			zap.Time("candle", candle.Timestamp))
		return false
	}

	lots := SizePosition(sm.cfg.Capital, sm.cfg.RiskPercent, sm.cfg.SLPoints, sm.cfg.LotSize)
	if lots == 0 {
		sm.logger.Info("Position size is zero. Skipping trade.",
			zap.Time("candle", candle.Timestamp),
			zap.Float64("capital", sm.cfg.Capital),
			zap.Float64("risk_percent", sm.cfg.RiskPercent),
			zap.Float64("sl_points", sm.cfg.SLPoints),
			zap.Int("lot_size", sm.cfg.LotSize))
		sm.observeEntry(EntrySkipped)
		return false
	}

	entry := candle.Close
	sm.trade = &model.Trade{
		Symbol:         sm.cfg.Symbol,
		EntryTime:      candle.Timestamp,
		EntryPrice:     entry,
		PositionSize:   lots,
		LotSize:        sm.cfg.LotSize,
		SLPrice:        entry + sm.cfg.SLPoints, // 空头止损在开仓价之上
		BreakevenPrice: entry - sm.cfg.SLPoints, // 1:1 目标
		Status:         model.StatusOpen,
	}
	sm.state = StateOpen
	sm.observeEntry(EntryOpened)

	sm.logger.Info("New trade opened",
		zap.Time("entry_time", sm.trade.EntryTime),
		zap.Float64("entry_price", entry),
		zap.Int("lots", lots),
		zap.Float64("sl", sm.trade.SLPrice),
		zap.Float64("breakeven", sm.trade.BreakevenPrice))
	return true
}

// Manage 按固定优先级处理持仓，返回本根 K 线平掉的交易 (没有平仓则为 nil)
//  1. 最高价触及止损 -> 以止损价平仓，跳过后续检查
//  2. 最低价触及 1:1 目标 -> 止损移至开仓价 (只执行一次)
//  3. 高周期出现反转摆动 -> 以收盘价平仓
//
// higherWindow 只包含时间戳 <= 当前低周期 K 线的高周期 K 线
func (sm *StateMachine) Manage(candle model.Candle, higherWindow []model.Candle) *model.Trade {
	if sm.state != StateOpen {
		return nil
	}
	t := sm.trade

	if candle.High >= t.SLPrice {
		return sm.close(candle.Timestamp, t.SLPrice, model.ReasonStopLoss)
	}

	if !t.SLAtBreakeven && candle.Low <= t.BreakevenPrice {
		t.SLPrice = t.EntryPrice
		t.SLAtBreakeven = true
		if sm.metrics != nil {
			sm.metrics.BreakevenArmed.Inc()
		}
		sm.logger.Info("SL moved to breakeven",
			zap.Time("candle", candle.Timestamp),
			zap.Float64("sl", t.SLPrice))
	}

	if CheckExit(higherWindow) {
		return sm.close(candle.Timestamp, candle.Close, model.ReasonReverseSwing)
	}
	return nil
}

// close 平仓并追加到交易日志: OPEN -> FLAT
func (sm *StateMachine) close(exitTime time.Time, exitPrice float64, reason string) *model.Trade {
	t := sm.trade
	t.Close(exitTime, exitPrice, reason)

	sm.closed = append(sm.closed, t)
	sm.trade = nil
	sm.state = StateFlat

	if sm.metrics != nil {
		sm.metrics.TradesClosed.WithLabelValues(reason).Inc()
		sm.metrics.TradePnL.Observe(t.PnL)
		sm.metrics.RealizedPnL.Add(t.PnL)
	}
	sm.logger.Info("Trade closed",
		zap.Time("exit_time", exitTime),
		zap.Float64("exit_price", exitPrice),
		zap.String("reason", reason),
		zap.Float64("pnl", t.PnL))
	return t
}

func (sm *StateMachine) observeEntry(outcome string) {
	if sm.metrics != nil {
		sm.metrics.EntrySignals.WithLabelValues(outcome).Inc()
	}
}
