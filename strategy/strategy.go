package strategy

import (
	"sort"
	"sync"

	"github.com/rustyeddy/tradebot/market"
)

// Strategy is the capability interface every signal generator implements.
// The engine and optimizer hold values of this type and never branch on the
// concrete strategy except for logging.
type Strategy interface {
	Name() string

	// GenerateSignals inspects recent candles for one instrument and emits
	// zero or more trade signals.
	GenerateSignals(instrument string, candles []market.Candle) ([]Signal, error)

	// ParameterGrid declares candidate values per parameter for exhaustive
	// optimization.
	ParameterGrid() map[string][]float64

	// SuggestParameters draws one parameter set from the search space for a
	// guided-optimization trial.
	SuggestParameters(t Trial) map[string]float64

	// SetParameters applies a parameter assignment; unknown keys are an error.
	SetParameters(params map[string]float64) error
}

// Trial proposes parameter values during guided optimization. Implemented by
// the optimizer's sampler.
type Trial interface {
	SuggestInt(name string, low, high int) int
	SuggestFloat(name string, low, high float64) float64
}

var (
	mu       sync.Mutex
	registry = make(map[string]func() Strategy)
)

// Register makes a strategy constructor available by name.
func Register(name string, ctor func() Strategy) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// New constructs a registered strategy, or nil if the name is unknown.
func New(name string) Strategy {
	mu.Lock()
	defer mu.Unlock()
	ctor, ok := registry[name]
	if !ok {
		return nil
	}
	return ctor()
}

// Names lists the registered strategies, sorted.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()

	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
