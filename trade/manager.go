package trade

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/internal/id"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/rustyeddy/tradebot/portfolio"
	"github.com/rustyeddy/tradebot/strategy"
)

var (
	// ErrInstrumentBusy: at most one trade may be open per instrument. A
	// second signal is rejected, never queued.
	ErrInstrumentBusy = errors.New("instrument already has an open trade")

	// ErrNoFill: the venue reported no execution, so no trade state changes.
	ErrNoFill = errors.New("order was not filled")
)

// Manager is the trade lifecycle state machine shared by the live engine and
// the backtester. It exclusively owns Trade objects; all capital changes go
// through the Portfolio's update methods. Open/close for the same instrument
// are serialized under the manager's lock.
type Manager struct {
	mu       sync.Mutex
	active   map[string]*Trade
	history  []*Trade
	pf       *portfolio.Portfolio
	jnl      journal.Journal
	currency string

	// Incrementally maintained close stats; avoids rescanning history.
	closed  int
	wins    int
	totalPL float64
}

func NewManager(pf *portfolio.Portfolio, jnl journal.Journal, currency string) *Manager {
	return &Manager{
		active:   make(map[string]*Trade),
		pf:       pf,
		jnl:      jnl,
		currency: currency,
	}
}

// Open turns an approved signal plus its fill into an open trade. The fill
// must carry a real execution; otherwise nothing changes and the caller
// retries or drops the signal.
func (m *Manager) Open(sig strategy.Signal, fill broker.Fill) (Trade, error) {
	if !fill.Executed() {
		return Trade{}, ErrNoFill
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.active[sig.Instrument]; busy {
		return Trade{}, ErrInstrumentBusy
	}

	notional := fill.Price * fill.Quantity
	if err := m.pf.Commit(m.currency, notional); err != nil {
		return Trade{}, fmt.Errorf("open %s: %w", sig.Instrument, err)
	}

	t := &Trade{
		ID:             id.New(),
		Instrument:     sig.Instrument,
		Direction:      sig.Direction,
		RequestedSize:  sig.Size,
		ExecutedSize:   fill.Quantity,
		EntryPrice:     fill.Price,
		EntryTime:      fill.Time,
		Status:         Open,
		Strategy:       sig.Strategy,
		SignalStrength: sig.Strength,
	}

	m.pf.ApplyFill(t.Instrument, t.SignedSize(), t.EntryPrice)

	m.active[t.Instrument] = t
	m.history = append(m.history, t)

	return *t, nil
}

// Close transitions the trade to its terminal state: sets exit price and
// time, realizes profit = (exit - entry) x quantity x direction, releases
// the committed capital, and unwinds the position. A fill without execution
// leaves the trade open.
func (m *Manager) Close(tradeID string, fill broker.Fill, reason ExitReason) (Trade, error) {
	if !fill.Executed() {
		return Trade{}, ErrNoFill
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.findLocked(tradeID)
	if t == nil {
		return Trade{}, fmt.Errorf("close: unknown trade %q", tradeID)
	}
	if t.Status == Closed {
		return Trade{}, fmt.Errorf("close: trade %q already closed", tradeID)
	}

	t.ExitPrice = fill.Price
	t.ExitTime = fill.Time
	t.Profit = (t.ExitPrice - t.EntryPrice) * t.ExecutedSize * float64(t.Direction)
	t.Reason = reason
	t.Status = Closed

	m.pf.Release(m.currency, t.Notional())
	m.pf.SettlePL(m.currency, t.Profit)
	m.pf.ApplyFill(t.Instrument, -t.SignedSize(), t.ExitPrice)

	delete(m.active, t.Instrument)

	m.closed++
	m.totalPL += t.Profit
	if t.Profit > 0 {
		m.wins++
	}

	if m.jnl != nil {
		if err := m.jnl.RecordTrade(journal.TradeRecord{
			TradeID:    t.ID,
			Instrument: t.Instrument,
			Direction:  t.Direction.String(),
			Quantity:   t.ExecutedSize,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			Profit:     t.Profit,
			Reason:     string(reason),
			Strategy:   t.Strategy,
		}); err != nil {
			return *t, fmt.Errorf("journal trade %s: %w", t.ID, err)
		}
	}

	return *t, nil
}

// HasOpen reports whether the instrument has an open trade.
func (m *Manager) HasOpen(instrument string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[instrument]
	return ok
}

// OpenCount returns the number of currently open trades.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// OpenTrades returns value copies of all open trades.
func (m *Manager) OpenTrades() []Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Trade, 0, len(m.active))
	for _, t := range m.active {
		out = append(out, *t)
	}
	return out
}

// History returns value copies of every trade ever opened, oldest first.
func (m *Manager) History() []Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Trade, 0, len(m.history))
	for _, t := range m.history {
		out = append(out, *t)
	}
	return out
}

// ClosedTrades returns value copies of closed trades, oldest first.
func (m *Manager) ClosedTrades() []Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Trade
	for _, t := range m.history {
		if t.Status == Closed {
			out = append(out, *t)
		}
	}
	return out
}

// Performance is the cheap running summary over closed trades.
type Performance struct {
	TotalPL     float64
	WinRate     float64
	AvgPL       float64
	TotalTrades int
	OpenTrades  int
}

func (m *Manager) Performance() Performance {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := Performance{
		TotalPL:     m.totalPL,
		TotalTrades: m.closed,
		OpenTrades:  len(m.active),
	}
	if m.closed > 0 {
		p.WinRate = float64(m.wins) / float64(m.closed)
		p.AvgPL = m.totalPL / float64(m.closed)
	}
	return p
}

// findLocked searches every trade ever opened, so callers can tell a closed
// trade apart from one that never existed.
func (m *Manager) findLocked(tradeID string) *Trade {
	for _, t := range m.history {
		if t.ID == tradeID {
			return t
		}
	}
	return nil
}
