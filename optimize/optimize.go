// Package optimize searches a strategy's parameter space by repeatedly
// backtesting candidate parameter sets and keeping the best Sharpe ratio.
package optimize

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradebot/backtest"
	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/strategy"
)

type Config struct {
	// NewStrategy builds a fresh strategy per trial so trials never share
	// mutable state.
	NewStrategy func() strategy.Strategy

	Data     broker.MarketData
	Backtest backtest.Config

	// Workers bounds trial parallelism; default 4.
	Workers int

	// Trials is the guided-search budget; default 100.
	Trials int

	// Seed makes guided search reproducible.
	Seed int64

	Log zerolog.Logger
}

// Best is the result shape shared by both search methods.
type Best struct {
	Params map[string]float64
	Metric float64
}

func (c *Config) normalize() error {
	if c.NewStrategy == nil {
		return fmt.Errorf("optimize: NewStrategy is required")
	}
	if c.Data == nil {
		return fmt.Errorf("optimize: Data is required")
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Trials <= 0 {
		c.Trials = 100
	}
	return nil
}

// objective backtests one parameter set and returns its Sharpe ratio. Each
// call owns an independent strategy, backtester, and portfolio.
func objective(ctx context.Context, cfg Config, params map[string]float64) (float64, error) {
	s := cfg.NewStrategy()
	if err := s.SetParameters(params); err != nil {
		return 0, err
	}

	res, err := backtest.New(s, cfg.Data, cfg.Backtest).Run(ctx)
	if err != nil {
		return 0, err
	}
	return res.Metrics.Sharpe, nil
}

// Grid exhaustively evaluates the Cartesian product of the strategy's
// declared parameter grid. Ties are broken by first-found in declaration
// order (keys sorted, values in declared order).
func Grid(ctx context.Context, cfg Config) (Best, error) {
	if err := cfg.normalize(); err != nil {
		return Best{}, err
	}

	grid := cfg.NewStrategy().ParameterGrid()
	if len(grid) == 0 {
		return Best{}, fmt.Errorf("optimize: strategy declares no parameter grid")
	}

	combos := cartesian(grid)
	return runTrials(ctx, cfg, len(combos), func(i int) map[string]float64 {
		return combos[i]
	}, nil)
}

// Search runs a trial-budgeted guided search: the first half of the budget
// samples the space uniformly through the strategy's Trial hooks, the rest
// perturbs around the best-seen parameters with shrinking width.
func Search(ctx context.Context, cfg Config) (Best, error) {
	if err := cfg.normalize(); err != nil {
		return Best{}, err
	}

	sampler := newSampler(cfg.Seed, cfg.Trials)

	// Suggestions run concurrently on the worker pool, so each trial asks a
	// fresh strategy instance rather than sharing one across goroutines.
	return runTrials(ctx, cfg, cfg.Trials, func(i int) map[string]float64 {
		return cfg.NewStrategy().SuggestParameters(sampler.trial(i))
	}, sampler.observe)
}

type trialResult struct {
	idx    int
	params map[string]float64
	metric float64
	err    error
}

// runTrials evaluates n parameter sets on a bounded worker pool. A failed
// trial is logged and skipped; it never aborts the loop. observe, when set,
// feeds finished trials back to the proposal source.
func runTrials(ctx context.Context, cfg Config, n int, paramsAt func(int) map[string]float64, observe func(map[string]float64, float64)) (Best, error) {
	jobs := make(chan int)
	results := make(chan trialResult, cfg.Workers)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				params := paramsAt(i)
				metric, err := objective(ctx, cfg, params)
				results <- trialResult{idx: i, params: params, metric: metric, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	best := Best{Metric: math.Inf(-1)}
	bestIdx := -1
	evaluated := 0

	for r := range results {
		if r.err != nil {
			cfg.Log.Warn().Err(r.err).Int("trial", r.idx).Msg("trial failed, skipping")
			continue
		}
		evaluated++
		if observe != nil {
			observe(r.params, r.metric)
		}
		// Strictly better, or equal metric found at an earlier index.
		if r.metric > best.Metric || (r.metric == best.Metric && (bestIdx == -1 || r.idx < bestIdx)) {
			best = Best{Params: r.params, Metric: r.metric}
			bestIdx = r.idx
		}
	}

	if err := ctx.Err(); err != nil {
		return Best{}, err
	}
	if evaluated == 0 {
		return Best{}, fmt.Errorf("optimize: all %d trials failed", n)
	}

	cfg.Log.Info().Int("trials", evaluated).Float64("metric", best.Metric).
		Any("params", best.Params).Msg("optimization complete")
	return best, nil
}

// cartesian expands a parameter grid into every combination, iterating keys
// in sorted order so the expansion is deterministic.
func cartesian(grid map[string][]float64) []map[string]float64 {
	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []map[string]float64{{}}
	for _, name := range names {
		values := grid[name]
		next := make([]map[string]float64, 0, len(combos)*len(values))
		for _, base := range combos {
			for _, v := range values {
				combo := make(map[string]float64, len(base)+1)
				for k, bv := range base {
					combo[k] = bv
				}
				combo[name] = v
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}
