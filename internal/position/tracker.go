// Package position implements PositionTracker (C5): the authoritative store
// of open positions, with weighted-average entry accounting and partial-exit
// realized P&L, serialized per (segment, security_id, side) key so readers
// never block on an unrelated instrument's mutation.
package position

import (
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// LTPProvider supplies the current price used by UpdateUnrealized.
type LTPProvider interface {
	LTP(segment, securityID string) (money.Money, bool)
}

// ExitResult is what PartialExit reports back to AtomicTrade.
type ExitResult struct {
	RealizedPnL money.Money
	NetProceeds money.Money
}

type entry struct {
	mu  sync.Mutex
	pos types.Position
}

// Tracker holds one entry per (segment, security_id, side), each under its
// own lock so concurrent trades on different instruments never contend.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

func (t *Tracker) entryFor(id types.PositionID) *entry {
	key := id.String()
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()
	if ok {
		return e
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[key]; ok {
		return e
	}
	e = &entry{pos: types.Position{ID: id}}
	t.entries[key] = e
	return e
}

// AddFill records a buy (or short sell) fill, updating the weighted-average
// entry price per spec.md §3: buy_avg' = (buy_avg*buy_qty + p*q)/(buy_qty+q).
// Fees are cash-flow only and never fold into buy_avg.
func (t *Tracker) AddFill(id types.PositionID, qty int, price, fee money.Money) types.Position {
	e := t.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	p := &e.pos
	if p.EntryTimestamp.IsZero() {
		p.EntryTimestamp = time.Now()
		p.PeakPrice = price
	}
	newQty := p.BuyQty + qty
	weighted := p.BuyAvg.MulInt(p.BuyQty).Add(price.MulInt(qty))
	avg, _ := weighted.Div(money.FromInt(int64(newQty)))
	p.BuyAvg = avg
	p.BuyQty = newQty
	p.DayBuyQty += qty
	p.NetQty = p.BuyQty - p.SellQty
	p.CurrentPrice = price
	if p.PeakPrice.IsZero() || price.GreaterThan(p.PeakPrice) {
		p.PeakPrice = price
	}
	p.Version++
	return *p
}

// PartialExit records a sell of qty@price from a long position. realized_pnl
// accrues as (price - buy_avg)*qty; buy_avg itself is unchanged by a sell.
func (t *Tracker) PartialExit(id types.PositionID, qty int, price, fee money.Money) (ExitResult, error) {
	e := t.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	p := &e.pos
	if p.NetQty < qty {
		return ExitResult{}, types.NewError(types.ErrInsufficientPosition, "sell quantity exceeds net position")
	}

	realized := price.Sub(p.BuyAvg).MulInt(qty)
	proceeds := price.MulInt(qty).Sub(fee)

	p.SellQty += qty
	p.DaySellQty += qty
	p.NetQty = p.BuyQty - p.SellQty
	p.RealizedPnL = p.RealizedPnL.Add(realized)
	p.CurrentPrice = price
	if p.NetQty == 0 {
		// peak_price resets once the position is flat, per spec.md §3.
		p.PeakPrice = money.Zero
		p.TrailingStop = nil
		p.BreakevenSet = false
	}
	p.Version++

	return ExitResult{RealizedPnL: realized, NetProceeds: proceeds}, nil
}

// UpdateUnrealized marks every open position to the latest LTP.
func (t *Tracker) UpdateUnrealized(ltp LTPProvider) {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		if e.pos.NetQty != 0 {
			if price, ok := ltp.LTP(e.pos.ID.Segment, e.pos.ID.SecurityID); ok {
				e.pos.CurrentPrice = price
				e.pos.UnrealizedPnL = price.Sub(e.pos.BuyAvg).MulInt(e.pos.NetQty)
				if price.GreaterThan(e.pos.PeakPrice) {
					e.pos.PeakPrice = price
				}
			}
		}
		e.mu.Unlock()
	}
}

// Get returns the current snapshot for (segment, security_id, side).
func (t *Tracker) Get(id types.PositionID) (types.Position, bool) {
	t.mu.RLock()
	e, ok := t.entries[id.String()]
	t.mu.RUnlock()
	if !ok {
		return types.Position{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos, true
}

// Mutate applies fn to the position under its per-key lock, used by the exit
// engine to compare-and-set peak_price/stop_loss/trailing_stop atomically.
func (t *Tracker) Mutate(id types.PositionID, fn func(*types.Position)) types.Position {
	e := t.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.pos)
	e.pos.Version++
	return e.pos
}

// ListOpen returns every position with a non-zero net quantity.
func (t *Tracker) ListOpen() []types.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Position, 0, len(t.entries))
	for _, e := range t.entries {
		e.mu.Lock()
		if e.pos.NetQty != 0 {
			out = append(out, e.pos)
		}
		e.mu.Unlock()
	}
	return out
}

// ResetDayQuantities zeroes day_buy_qty/day_sell_qty on every tracked
// position, called at the start of a new trading session.
func (t *Tracker) ResetDayQuantities() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		e.mu.Lock()
		e.pos.DayBuyQty = 0
		e.pos.DaySellQty = 0
		e.mu.Unlock()
	}
}
