package journal

import (
	"sync"
	"time"
)

// Memory keeps records in process. Backtests use it so simulation runs leave
// no files behind; tests use it as a cheap fake.
type Memory struct {
	mu     sync.Mutex
	trades []TradeRecord
	equity []EquitySnapshot
}

func NewMemory() *Memory { return &Memory{} }

func (j *Memory) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	j.trades = append(j.trades, t)
	j.mu.Unlock()
	return nil
}

func (j *Memory) RecordEquity(e EquitySnapshot) error {
	j.mu.Lock()
	j.equity = append(j.equity, e)
	j.mu.Unlock()
	return nil
}

func (j *Memory) TradeHistory(days int) ([]TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if days <= 0 {
		out := make([]TradeRecord, len(j.trades))
		copy(out, j.trades)
		return out, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var out []TradeRecord
	for _, t := range j.trades {
		if !t.ExitTime.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Equity returns the recorded equity curve.
func (j *Memory) Equity() []EquitySnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]EquitySnapshot, len(j.equity))
	copy(out, j.equity)
	return out
}

func (j *Memory) Close() error { return nil }
