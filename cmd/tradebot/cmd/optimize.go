package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebot/optimize"
	"github.com/rustyeddy/tradebot/strategy"
)

var (
	optMethod  string
	optTrials  int
	optWorkers int
	optSeed    int64
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search strategy parameters for the best Sharpe ratio",
	Long: `Optimize backtests many parameter sets and reports the best one.

Methods:
  grid    exhaustive sweep of the strategy's declared parameter grid
  search  trial-budgeted guided search over the strategy's parameter space

Example:
  tradebot optimize -d data/candles.csv -s sma-cross -m search -n 200`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVarP(&btCandlesPath, "data", "d", "", "path to candle CSV (required)")
	optimizeCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "sma-cross", "strategy name")
	optimizeCmd.Flags().StringVar(&btFrom, "from", "", "window start (RFC3339 or YYYY-MM-DD)")
	optimizeCmd.Flags().StringVar(&btTo, "to", "", "window end (RFC3339 or YYYY-MM-DD)")

	optimizeCmd.Flags().StringVarP(&optMethod, "method", "m", "grid", "search method (grid, search)")
	optimizeCmd.Flags().IntVarP(&optTrials, "trials", "n", 100, "guided search trial budget")
	optimizeCmd.Flags().IntVarP(&optWorkers, "workers", "w", 4, "parallel trial workers")
	optimizeCmd.Flags().Int64Var(&optSeed, "seed", 1, "guided search RNG seed")

	optimizeCmd.MarkFlagRequired("data")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	btCfg, data, _, err := buildBacktest(cfg)
	if err != nil {
		return err
	}

	optCfg := optimize.Config{
		NewStrategy: func() strategy.Strategy { return strategy.New(btStrategy) },
		Data:        data,
		Backtest:    btCfg,
		Workers:     optWorkers,
		Trials:      optTrials,
		Seed:        optSeed,
		Log:         log,
	}

	var best optimize.Best
	switch optMethod {
	case "grid":
		best, err = optimize.Grid(context.Background(), optCfg)
	case "search":
		best, err = optimize.Search(context.Background(), optCfg)
	default:
		return fmt.Errorf("unknown method %q (grid, search)", optMethod)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Best Sharpe: %.4f\n", best.Metric)
	fmt.Println("Best parameters:")
	for name, v := range best.Params {
		fmt.Printf("  %-12s %.6g\n", name, v)
	}
	return nil
}
