package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vwap-ema-trader/internal/data"
	"vwap-ema-trader/internal/model"
	"vwap-ema-trader/internal/service"
	"vwap-ema-trader/internal/strategy"
	"vwap-ema-trader/pkg/ta"
)

// Result 一次回测的完整输出
type Result struct {
	RunID         string
	Config        model.BacktestConfig
	NoData        bool
	LowerCandles  int
	HigherCandles int

	Trades    []*model.Trade // 已平仓交易，按平仓顺序
	OpenTrade *model.Trade   // 数据结束时仍未平仓的交易 (不计入汇总)
	LastClose float64
	LastTime  time.Time

	Summary Summary
}

// UnrealizedPnL 以最后收盘价计算未平仓交易的浮动盈亏，没有持仓时为 0
func (r *Result) UnrealizedPnL() float64 {
	if r.OpenTrade == nil {
		return 0
	}
	return r.OpenTrade.UnrealizedPnL(r.LastClose)
}

// Backtester 在历史 K 线上逐根回放策略
type Backtester struct {
	cfg      model.BacktestConfig
	provider data.Provider
	calc     *ta.Calculator
	metrics  *service.Metrics
	logger   *zap.Logger
}

// NewBacktester 校验配置并组装回测器；metrics 可以为 nil
func NewBacktester(cfg model.BacktestConfig, provider data.Provider, logger *zap.Logger, metrics *service.Metrics) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	if provider == nil {
		return nil, errors.New("data provider is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Backtester{
		cfg:      cfg,
		provider: provider,
		calc:     ta.NewCalculator(cfg, logger),
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Run 拉取数据、计算指标并回放；取数失败 (包括 data.ErrNoData) 时返回 NoData 结果和包装后的原因
// 每次调用使用新的状态机，相同输入得到相同的交易日志
func (b *Backtester) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	logger := b.logger.With(zap.String("run_id", runID), zap.String("symbol", b.cfg.Symbol))
	res := &Result{RunID: runID, Config: b.cfg}

	req := data.Request{
		Symbol:         b.cfg.Symbol,
		Exchange:       b.cfg.Exchange,
		InstrumentType: b.cfg.InstrumentType,
		Start:          b.cfg.StartDate,
		End:            b.cfg.WindowEnd(),
		Interval:       b.cfg.LowerInterval,
	}
	logger.Info("Running backtest",
		zap.String("start", b.cfg.StartDate.Format(time.DateOnly)),
		zap.String("end", b.cfg.EndDate.Format(time.DateOnly)),
		zap.String("lower", service.FormatInterval(b.cfg.LowerInterval)),
		zap.String("higher", service.FormatInterval(b.cfg.HigherInterval)))

	lower, err := b.fetch(ctx, req)
	if err != nil {
		// 任何取数失败都按无数据处理: 零交易，不崩溃
		logger.Warn("No lower-timeframe data available for the given period.", zap.Error(err))
		res.NoData = true
		res.Summary = Summarize(nil)
		return res, fmt.Errorf("fetch history: %w", err)
	}

	ind, err := b.calc.Compute(lower)
	if err != nil {
		return res, fmt.Errorf("compute indicators: %w", err)
	}
	res.LowerCandles = len(ind.Lower)
	res.HigherCandles = len(ind.Higher)

	sm := strategy.NewStateMachine(b.cfg, logger, b.metrics)
	b.replay(ind, sm)

	res.Trades = sm.ClosedTrades()
	res.OpenTrade = sm.OpenTrade()
	last := lower[len(lower)-1]
	res.LastClose, res.LastTime = last.Close, last.Timestamp
	res.Summary = Summarize(res.Trades)

	fields := []zap.Field{
		zap.Int("trades", res.Summary.Trades),
		zap.Float64("total_pnl", res.Summary.TotalPnL),
		zap.Float64("win_rate", res.Summary.WinRate),
	}
	if res.OpenTrade != nil {
		fields = append(fields, zap.Float64("unrealized_pnl", res.UnrealizedPnL()))
	}
	logger.Info("Backtest finished", fields...)
	return res, nil
}

// fetch 拉取并校验低周期序列，再裁剪到回测区间
func (b *Backtester) fetch(ctx context.Context, req data.Request) (model.Series, error) {
	lower, err := b.provider.FetchHistory(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := lower.Validate(); err != nil {
		return nil, err
	}
	lower = lower.Between(req.Start, req.End)
	if len(lower) == 0 {
		return nil, fmt.Errorf("%w for %s", data.ErrNoData, req)
	}
	return lower, nil
}

// replay 从第二根 K 线开始逐根推进，第一根只用于形成窗口
func (b *Backtester) replay(ind *ta.Indicators, sm *strategy.StateMachine) {
	lower := ind.Lower
	vwap := ind.VWAP.Values
	ema := ind.AlignedEMA.Values

	for i := 1; i < len(lower); i++ {
		candle := lower[i]
		if b.metrics != nil {
			b.metrics.CandlesProcessed.Inc()
		}

		switch sm.State() {
		case strategy.StateOpen:
			sm.Manage(candle, ind.Higher.UpTo(candle.Timestamp))
		case strategy.StateFlat:
			if strategy.CheckEntry(lower[:i+1], vwap[:i+1], ema[:i+1]) {
				b.logger.Debug("Sell signal detected",
					zap.Time("candle", candle.Timestamp),
					zap.Float64("close", candle.Close))
				sm.Open(candle)
			}
		}
	}
}
