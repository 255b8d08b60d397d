package optimize

import (
	"math"
	"math/rand"
	"sync"

	"github.com/rustyeddy/tradebot/strategy"
)

// sampler hands out strategy.Trial values. Early trials sample parameter
// ranges uniformly; once half the budget is spent, trials draw from a
// normal distribution centered on the best-seen assignment, with width
// shrinking as the budget runs down.
type sampler struct {
	mu     sync.Mutex
	rng    *rand.Rand
	budget int

	best       map[string]float64
	bestMetric float64
	haveBest   bool
}

func newSampler(seed int64, budget int) *sampler {
	return &sampler{
		rng:        rand.New(rand.NewSource(seed)),
		budget:     budget,
		bestMetric: math.Inf(-1),
	}
}

// observe feeds a completed trial back into the sampler.
func (s *sampler) observe(params map[string]float64, metric float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if metric > s.bestMetric {
		s.bestMetric = metric
		s.best = params
		s.haveBest = true
	}
}

func (s *sampler) trial(i int) strategy.Trial {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &sampleTrial{sampler: s}
	if s.haveBest && i >= s.budget/2 {
		t.center = s.best
		// Width decays from 0.3 of the range toward 0.05.
		progress := float64(i) / float64(s.budget)
		t.width = 0.3 - 0.25*progress
	}
	return t
}

type sampleTrial struct {
	sampler *sampler
	center  map[string]float64 // nil => uniform
	width   float64            // fraction of the range
}

func (t *sampleTrial) SuggestFloat(name string, low, high float64) float64 {
	t.sampler.mu.Lock()
	defer t.sampler.mu.Unlock()

	if c, ok := t.centerValue(name); ok {
		v := c + t.sampler.rng.NormFloat64()*t.width*(high-low)
		return clamp(v, low, high)
	}
	return low + t.sampler.rng.Float64()*(high-low)
}

func (t *sampleTrial) SuggestInt(name string, low, high int) int {
	t.sampler.mu.Lock()
	defer t.sampler.mu.Unlock()

	if c, ok := t.centerValue(name); ok {
		v := c + t.sampler.rng.NormFloat64()*t.width*float64(high-low)
		return int(clamp(math.Round(v), float64(low), float64(high)))
	}
	return low + t.sampler.rng.Intn(high-low+1)
}

func (t *sampleTrial) centerValue(name string) (float64, bool) {
	if t.center == nil {
		return 0, false
	}
	v, ok := t.center[name]
	return v, ok
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
