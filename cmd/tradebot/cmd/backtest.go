package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebot/backtest"
	"github.com/rustyeddy/tradebot/config"
	"github.com/rustyeddy/tradebot/risk"
	"github.com/rustyeddy/tradebot/strategy"
	"github.com/rustyeddy/tradebot/trade"
)

var (
	btCandlesPath string
	btStrategy    string
	btFrom        string
	btTo          string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a strategy over historical candles and report metrics",
	Long: `Backtest replays the trade lifecycle over a historical candle CSV
(time,instrument,open,high,low,close,volume) with deterministic close-price
fills and a fixed basis-point commission.

Example:
  tradebot backtest -d data/candles.csv -s sma-cross --from 2024-01-01 --to 2024-06-30`,
	RunE: runBacktestCmd,
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btCandlesPath, "data", "d", "", "path to candle CSV (required)")
	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "sma-cross", "strategy name")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "window start (RFC3339 or YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "window end (RFC3339 or YYYY-MM-DD)")

	backtestCmd.MarkFlagRequired("data")
}

func runBacktestCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	btCfg, data, strat, err := buildBacktest(cfg)
	if err != nil {
		return err
	}
	btCfg.Log = log

	res, err := backtest.New(strat, data, btCfg).Run(context.Background())
	if err != nil {
		var nde *backtest.NoDataError
		if errors.As(err, &nde) {
			return fmt.Errorf("backtest aborted: %w", err)
		}
		return err
	}

	backtest.PrintResult(os.Stdout, strat.Name(), res)
	return nil
}

// buildBacktest assembles the shared backtest wiring used by the backtest
// and optimize commands.
func buildBacktest(cfg *config.Config) (backtest.Config, *backtest.CSVCandles, strategy.Strategy, error) {
	data, err := backtest.LoadCSVCandles(btCandlesPath)
	if err != nil {
		return backtest.Config{}, nil, nil, fmt.Errorf("load candles: %w", err)
	}

	instruments := data.Instruments()
	if len(instruments) == 0 {
		return backtest.Config{}, nil, nil, fmt.Errorf("no candles in %s", btCandlesPath)
	}

	var from, to time.Time
	if btFrom != "" {
		if from, err = config.Date(btFrom); err != nil {
			return backtest.Config{}, nil, nil, err
		}
	}
	if btTo != "" {
		if to, err = config.Date(btTo); err != nil {
			return backtest.Config{}, nil, nil, err
		}
	}
	if from.IsZero() || to.IsZero() {
		// Default to the full coverage of the file.
		ctx := context.Background()
		for _, in := range instruments {
			candles, _ := data.GetCandles(ctx, in, 0, time.Time{}, time.Time{})
			if len(candles) == 0 {
				continue
			}
			if from.IsZero() || candles[0].Time.Before(from) {
				from = candles[0].Time
			}
			if to.IsZero() || candles[len(candles)-1].Time.After(to) {
				to = candles[len(candles)-1].Time
			}
		}
	}

	strat := strategy.New(btStrategy)
	if strat == nil {
		return backtest.Config{}, nil, nil, fmt.Errorf("unknown strategy %q (registered: %v)", btStrategy, strategy.Names())
	}

	return backtest.Config{
		Instruments:    instruments,
		From:           from,
		To:             to,
		Step:           config.Duration(cfg.Backtest.Step, 24*time.Hour),
		Interval:       config.Duration(cfg.Backtest.Interval, time.Hour),
		InitialBalance: cfg.Backtest.InitialBalance,
		Currency:       cfg.Account.Currency,
		CommissionBPS:  cfg.Backtest.CommissionBPS,
		Warmup:         cfg.Backtest.Warmup,
		CloseAtEnd:     true,
		RiskPolicy: risk.Policy{
			RiskPerTrade:  cfg.Risk.RiskPerTrade,
			MaxOpenTrades: cfg.Risk.MaxOpenTrades,
			MinUnits:      cfg.Risk.MinUnits,
		},
		ExitRules: trade.ExitRules{
			StopLossPct:   cfg.Exit.StopLossPct,
			TakeProfitPct: cfg.Exit.TakeProfitPct,
			MaxHold:       config.Duration(cfg.Exit.MaxHold, 4*time.Hour),
		},
	}, data, strat, nil
}
