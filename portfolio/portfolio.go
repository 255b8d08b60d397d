// Package portfolio owns the capital ledger: balances and open positions.
// Nothing outside this package mutates either directly; the trade lifecycle
// goes through the exported update methods.
package portfolio

import (
	"fmt"
	"sync"
)

// Balance tracks one currency. Available is what remains after capital
// committed to open trades; Total >= Available always holds.
type Balance struct {
	Currency  string
	Total     float64
	Available float64
}

// Position is a net holding in one instrument. Quantity is signed: positive
// long, negative short. AvgPrice is the volume-weighted average entry price.
type Position struct {
	Instrument string
	Quantity   float64
	AvgPrice   float64
}

type Portfolio struct {
	mu        sync.Mutex
	balances  map[string]*Balance
	positions map[string]*Position
}

func New(currency string, balance float64) *Portfolio {
	p := &Portfolio{
		balances:  make(map[string]*Balance),
		positions: make(map[string]*Position),
	}
	if currency != "" {
		p.balances[currency] = &Balance{Currency: currency, Total: balance, Available: balance}
	}
	return p
}

// Deposit adds (or with a negative amount, withdraws) settled funds.
func (p *Portfolio) Deposit(currency string, amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.balance(currency)
	b.Total += amount
	b.Available += amount
}

// Commit reserves capital for an open trade, reducing Available only.
func (p *Portfolio) Commit(currency string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("commit %s: negative amount %.2f", currency, amount)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	b := p.balance(currency)
	if b.Available < amount {
		return fmt.Errorf("commit %s: need %.2f, available %.2f", currency, amount, b.Available)
	}
	b.Available -= amount
	return nil
}

// Release returns previously committed capital to Available. The release is
// capped at Total so the Available <= Total invariant cannot be broken by a
// mismatched caller.
func (p *Portfolio) Release(currency string, amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := p.balance(currency)
	b.Available += amount
	if b.Available > b.Total {
		b.Available = b.Total
	}
}

// SettlePL applies a realized profit (or loss) to both Total and Available.
func (p *Portfolio) SettlePL(currency string, pl float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.balance(currency)
	b.Total += pl
	b.Available += pl
}

// ApplyFill folds an executed quantity at an executed price into the
// instrument's position. Quantity is signed. The average price is the
// weighted average of the existing lot and the new one; a position netting
// out to zero is removed, not kept at zero.
func (p *Portfolio) ApplyFill(instrument string, quantity, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[instrument]
	if !ok {
		pos = &Position{Instrument: instrument}
		p.positions[instrument] = pos
	}

	newQty := pos.Quantity + quantity
	if newQty == 0 {
		delete(p.positions, instrument)
		return
	}
	pos.AvgPrice = (pos.AvgPrice*pos.Quantity + price*quantity) / newQty
	pos.Quantity = newQty
}

func (p *Portfolio) Balance(currency string) Balance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.balance(currency)
}

func (p *Portfolio) Position(instrument string) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[instrument]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

func (p *Portfolio) Positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// Cash sums Total across currencies. Multi-currency conversion is the
// caller's problem; in practice the ledger runs in one account currency.
func (p *Portfolio) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var total float64
	for _, b := range p.balances {
		total += b.Total
	}
	return total
}

// Equity marks open positions to the supplied prices and returns cash plus
// unrealized P/L. Positions without a price contribute nothing.
func (p *Portfolio) Equity(prices map[string]float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var equity float64
	for _, b := range p.balances {
		equity += b.Total
	}
	for in, pos := range p.positions {
		mark, ok := prices[in]
		if !ok {
			continue
		}
		equity += pos.Quantity * (mark - pos.AvgPrice)
	}
	return equity
}

// balance returns the named balance, creating a zero entry on first use.
// Caller must hold p.mu.
func (p *Portfolio) balance(currency string) *Balance {
	b, ok := p.balances[currency]
	if !ok {
		b = &Balance{Currency: currency}
		p.balances[currency] = b
	}
	return b
}
