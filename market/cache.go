package market

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Cache holds the latest known price and recent candle history per
// instrument. The market-data feed is the only writer; the engine and
// backtester only read. All methods are safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	prices     map[string]Price
	candles    map[string][]Candle
	maxCandles int
}

// DefaultHistory caps how many candles the cache retains per instrument.
const DefaultHistory = 500

func NewCache() *Cache {
	return &Cache{
		prices:     make(map[string]Price),
		candles:    make(map[string][]Candle),
		maxCandles: DefaultHistory,
	}
}

// SetHistory adjusts the per-instrument candle retention limit.
func (c *Cache) SetHistory(n int) {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	c.maxCandles = n
	c.mu.Unlock()
}

func (c *Cache) SetPrice(p Price) {
	c.mu.Lock()
	c.prices[p.Instrument] = p
	c.mu.Unlock()
}

// Price returns the latest known price for instrument.
func (c *Cache) Price(instrument string) (Price, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[instrument]
	return p, ok
}

// Append adds one candle to an instrument's history. Candle series are
// strictly increasing in time: out-of-order or duplicate timestamps are
// rejected, except that a forming candle may be replaced by its completed
// version at the same timestamp.
func (c *Cache) Append(instrument string, k Candle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	series := c.candles[instrument]
	if n := len(series); n > 0 {
		last := series[n-1]
		if k.Time.Before(last.Time) {
			return fmt.Errorf("candle for %s at %s is older than last %s",
				instrument, k.Time, last.Time)
		}
		if k.Time.Equal(last.Time) {
			if last.Complete {
				return fmt.Errorf("duplicate candle for %s at %s", instrument, k.Time)
			}
			series[n-1] = k
			c.prices[instrument] = Price{Instrument: instrument, Value: k.Close, Time: k.Time}
			return nil
		}
	}

	series = append(series, k)
	if len(series) > c.maxCandles {
		series = series[len(series)-c.maxCandles:]
	}
	c.candles[instrument] = series

	c.prices[instrument] = Price{Instrument: instrument, Value: k.Close, Time: k.Time}
	return nil
}

// Candles returns a copy of the instrument's candle history.
func (c *Cache) Candles(instrument string) []Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneCandles(c.candles[instrument])
}

// CandlesThrough returns the candles with timestamp <= cutoff. This is the
// only view the backtester exposes to strategies, so a simulated clock at T
// never leaks candles from the future.
func (c *Cache) CandlesThrough(instrument string, cutoff time.Time) []Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	series := c.candles[instrument]
	// Series is sorted by construction; binary search for the cut point.
	i := sort.Search(len(series), func(i int) bool {
		return series[i].Time.After(cutoff)
	})
	return cloneCandles(series[:i])
}

// Instruments lists every instrument with cached candle history.
func (c *Cache) Instruments() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.candles))
	for in := range c.candles {
		out = append(out, in)
	}
	sort.Strings(out)
	return out
}

func cloneCandles(in []Candle) []Candle {
	if len(in) == 0 {
		return nil
	}
	out := make([]Candle, len(in))
	copy(out, in)
	return out
}
