package backtest

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"vwap-ema-trader/internal/model"
	"vwap-ema-trader/internal/service"
)

// Summary 已平仓交易的汇总统计
type Summary struct {
	Trades   int
	Wins     int // pnl > 0
	Losses   int // pnl <= 0
	TotalPnL float64
	WinRate  float64 // 百分比
	MeanPnL  float64
	Best     float64
	Worst    float64
	NoTrades bool
}

// Summarize 只统计已平仓交易，金额用 decimal 累加
func Summarize(trades []*model.Trade) Summary {
	var s Summary
	total := decimal.Zero
	for _, t := range trades {
		if t == nil || t.Status != model.StatusClosed {
			continue
		}
		pnl := decimal.NewFromFloat(t.PnL)
		if s.Trades == 0 || t.PnL > s.Best {
			s.Best = t.PnL
		}
		if s.Trades == 0 || t.PnL < s.Worst {
			s.Worst = t.PnL
		}
		s.Trades++
		if t.PnL > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		total = total.Add(pnl)
	}

	if s.Trades == 0 {
		s.NoTrades = true
		return s
	}
	n := decimal.NewFromInt(int64(s.Trades))
	s.TotalPnL = total.InexactFloat64()
	s.MeanPnL = total.Div(n).InexactFloat64()
	s.WinRate = decimal.NewFromInt(int64(s.Wins)).Div(n).Mul(decimal.NewFromInt(100)).InexactFloat64()
	return s
}

// WriteReport 输出文本格式的回测报告
func WriteReport(w io.Writer, res *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cfg := res.Config

	fmt.Fprintln(tw, "--- Backtest Results ---")
	fmt.Fprintf(tw, "Run:\t%s\n", res.RunID)
	fmt.Fprintf(tw, "Symbol:\t%s (%s %s)\n", cfg.Symbol, cfg.Exchange, cfg.InstrumentType)
	fmt.Fprintf(tw, "Period:\t%s to %s\n", cfg.StartDate.Format(time.DateOnly), cfg.EndDate.Format(time.DateOnly))

	if res.NoData {
		fmt.Fprintln(tw, "\nNo data available for the given period.")
		fmt.Fprintln(tw, "------------------------")
		return tw.Flush()
	}

	fmt.Fprintf(tw, "Candles:\t%d x %s, %d x %s\n",
		res.LowerCandles, service.FormatInterval(cfg.LowerInterval),
		res.HigherCandles, service.FormatInterval(cfg.HigherInterval))

	s := res.Summary
	if s.NoTrades {
		fmt.Fprintln(tw, "\nNo trades were executed.")
	} else {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "Total Trades:\t%d\n", s.Trades)
		fmt.Fprintf(tw, "Total PnL:\t%.2f\n", s.TotalPnL)
		fmt.Fprintf(tw, "Win Rate:\t%.2f%%\n", s.WinRate)
		fmt.Fprintf(tw, "Wins / Losses:\t%d / %d\n", s.Wins, s.Losses)
		fmt.Fprintf(tw, "Average PnL per trade:\t%.2f\n", s.MeanPnL)
		fmt.Fprintf(tw, "Best / Worst:\t%.2f / %.2f\n", s.Best, s.Worst)

		fmt.Fprintln(tw, "\nIndividual Trades:")
		fmt.Fprintln(tw, "#\tENTRY TIME\tEXIT TIME\tENTRY\tEXIT\tLOTS\tPNL\tREASON")
		for i, t := range res.Trades {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.2f\t%d\t%.2f\t%s\n", i+1,
				t.EntryTime.Format(time.DateTime), t.ExitTime.Format(time.DateTime),
				t.EntryPrice, t.ExitPrice, t.PositionSize, t.PnL, t.Reason)
		}
	}

	if t := res.OpenTrade; t != nil {
		fmt.Fprintln(tw, "\nOpen position at end of data (excluded from totals):")
		fmt.Fprintf(tw, "  %s\n", t)
		fmt.Fprintf(tw, "  Unrealized PnL @ %.2f (%s):\t%.2f\n",
			res.LastClose, res.LastTime.Format(time.DateTime), res.UnrealizedPnL())
	}
	fmt.Fprintln(tw, "------------------------")
	return tw.Flush()
}
