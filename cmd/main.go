package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"vwap-ema-trader/internal/backtest"
	"vwap-ema-trader/internal/data"
	"vwap-ema-trader/internal/executor"
	"vwap-ema-trader/internal/model"
	"vwap-ema-trader/internal/service"
)

type options struct {
	mode        string
	symbol      string
	startDate   string
	endDate     string
	expiry      string
	configFile  string
	metricsFile string
}

func main() {
	fs := pflag.NewFlagSet("vwap-ema-trader", pflag.ExitOnError)
	var opts options
	fs.StringVar(&opts.mode, "mode", "", "run mode: backtest | live")
	fs.StringVar(&opts.symbol, "symbol", "", "stock or index symbol to trade (e.g. BANKNIFTY)")
	fs.StringVar(&opts.startDate, "start_date", "2023-01-01", "backtest start date (YYYY-MM-DD)")
	fs.StringVar(&opts.endDate, "end_date", "2023-01-31", "backtest end date (YYYY-MM-DD)")
	fs.StringVar(&opts.expiry, "expiry", "", "option expiry used by live mode (default: next Thursday)")
	fs.StringVar(&opts.configFile, "config", "", "config file (default: config/config.yaml)")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "write run metrics in Prometheus textfile format")
	fs.Float64("capital", 100000, "total capital")
	fs.Float64("risk", 0.8, "risk per trade as a percentage of capital")
	fs.Float64("sl_points", 50, "stop-loss in points")
	fs.Int("lot_size", 15, "lot size of the instrument")
	fs.String("source", data.SourceSimulated, "history source: simulated | csv | postgres | clickhouse")
	fs.String("log_level", "info", "log level")
	_ = fs.Parse(os.Args[1:])

	v := viper.New()
	for key, flag := range map[string]string{
		"Backtest.Capital":     "capital",
		"Backtest.RiskPercent": "risk",
		"Backtest.SLPoints":    "sl_points",
		"Backtest.LotSize":     "lot_size",
		"Data.Source":          "source",
		"Log.Level":            "log_level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "bind flag %s: %v\n", flag, err)
			os.Exit(2)
		}
	}

	cfg, err := service.LoadConfig(v, opts.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	service.InitLogger(cfg.Log.Level)
	logger := service.Logger

	if opts.symbol == "" || (opts.mode != "backtest" && opts.mode != "live") {
		fmt.Fprintln(os.Stderr, "--mode (backtest|live) and --symbol are required")
		fs.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if opts.mode == "backtest" {
		err = runBacktest(ctx, cfg, opts, logger)
	} else {
		err = runLive(ctx, cfg, opts, logger)
	}
	stop()

	if err != nil {
		logger.Error("Run failed", zap.String("mode", opts.mode), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// buildBacktestConfig 合并命令行参数与配置文件
func buildBacktestConfig(cfg *service.Config, opts options) (model.BacktestConfig, error) {
	b := cfg.Backtest
	loc, err := b.Location()
	if err != nil {
		return model.BacktestConfig{}, err
	}
	start, err := service.ParseDate(opts.startDate, loc)
	if err != nil {
		return model.BacktestConfig{}, err
	}
	end, err := service.ParseDate(opts.endDate, loc)
	if err != nil {
		return model.BacktestConfig{}, err
	}
	lower, higher, err := b.Intervals()
	if err != nil {
		return model.BacktestConfig{}, err
	}
	anchor, err := b.Anchor()
	if err != nil {
		return model.BacktestConfig{}, err
	}

	bc := model.BacktestConfig{
		Symbol:         opts.symbol,
		StartDate:      start,
		EndDate:        end,
		Capital:        b.Capital,
		RiskPercent:    b.RiskPercent,
		SLPoints:       b.SLPoints,
		LotSize:        b.LotSize,
		EMALength:      b.EMALength,
		LowerInterval:  lower,
		HigherInterval: higher,
		VWAPAnchor:     anchor,
		Location:       loc,
		Exchange:       b.Exchange,
		InstrumentType: b.InstrumentType,
	}
	return bc, bc.Validate()
}

func runBacktest(ctx context.Context, cfg *service.Config, opts options, logger *zap.Logger) error {
	logger.Info("--- Starting Backtest Mode ---")

	bc, err := buildBacktestConfig(cfg, opts)
	if err != nil {
		return err
	}

	provider, closeProvider, err := data.NewProvider(ctx, cfg.Data, bc.Location, logger)
	if err != nil {
		return fmt.Errorf("init data provider: %w", err)
	}
	defer closeProvider()

	metrics := service.NewMetrics()
	bt, err := backtest.NewBacktester(bc, provider, logger, metrics)
	if err != nil {
		return err
	}

	res, err := bt.Run(ctx)
	if err != nil {
		if res == nil || !res.NoData {
			return err
		}
		// 取数失败: 输出空报告，正常退出
		logger.Warn("Backtest aborted", zap.Error(err))
	}
	if err := backtest.WriteReport(os.Stdout, res); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if opts.metricsFile != "" {
		if err := metrics.WriteTextfile(opts.metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Info("Metrics written", zap.String("path", opts.metricsFile))
	}
	return nil
}

// runLive 校验凭证并构造券商；实盘循环尚未实现
func runLive(ctx context.Context, cfg *service.Config, opts options, logger *zap.Logger) error {
	logger.Info("--- Starting Live Trading Mode ---")

	if err := cfg.Broker.Validate(); err != nil {
		return err
	}

	var broker executor.Broker
	switch cfg.Broker.Name {
	case "paper":
		broker = executor.NewSimulatedBroker(logger)
	case "dhan", "":
		dhan, err := executor.NewDhanExecutor(cfg.Broker, logger)
		if err != nil {
			return err
		}
		broker = dhan
	default:
		return fmt.Errorf("unsupported broker %q (want dhan|paper)", cfg.Broker.Name)
	}

	expiry := opts.expiry
	if expiry == "" {
		loc, err := cfg.Backtest.Location()
		if err != nil {
			return err
		}
		expiry = nextWeekday(time.Now().In(loc), time.Thursday).Format(time.DateOnly)
	}

	option, err := executor.ATMOption(ctx, broker, opts.symbol, expiry)
	switch {
	case errors.Is(err, executor.ErrLiveTradingUnsupported):
		logger.Warn("ATM option lookup is not available for this broker", zap.Error(err))
	case err != nil:
		return err
	default:
		logger.Info("Determined ATM PUT option", zap.String("option", option))
	}

	logger.Warn("Live trading logic is not yet implemented; no orders will be placed.",
		zap.String("broker", cfg.Broker.Name),
		zap.String("symbol", opts.symbol))
	return nil
}

// nextWeekday 返回 t 之后 (含当天) 最近的 wd
func nextWeekday(t time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, days)
}
