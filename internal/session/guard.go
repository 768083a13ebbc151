// Package session implements SessionGuard (C15): market-window, day-loss,
// feed-staleness, and panic checks gating EntryManager/ExitManager on every
// decision tick, per spec.md §4.15.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/position"
	"github.com/shubhamtaywade82/dhan-scalper/internal/trade"
)

// State is the check() verdict per spec.md §4.15.
type State string

const (
	StateOK            State = "ok"
	StateMarketClosed  State = "market_closed"
	StateDayLossLimit  State = "day_loss_limit"
	StateFeedStale     State = "feed_stale"
	StatePanic         State = "panic"
)

// HeartbeatSource reports the last time WSManager saw any tick, used for
// the feed-staleness check.
type HeartbeatSource interface {
	LastHeartbeat() time.Time
}

// PnLSource supplies the running session total for the day-loss check.
type PnLSource interface {
	Total() money.Money
}

// Window is the daily trading window plus grace, in the exchange's local
// clock (callers pass times already normalized to that zone).
type Window struct {
	Open  time.Duration // offset from local midnight
	Close time.Duration
	Grace time.Duration
}

func (w Window) contains(now time.Time) bool {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sinceOpen := now.Sub(midnight)
	return sinceOpen >= w.Open && sinceOpen <= w.Close+w.Grace
}

// Guard is SessionGuard.
type Guard struct {
	window         Window
	maxDayLoss     money.Money
	staleThreshold time.Duration
	heartbeat      HeartbeatSource
	pnl            PnLSource
	positions      *position.Tracker
	executor       *trade.Executor
	panicFlag      atomic.Bool
	now            func() time.Time
}

// New constructs a Guard. now defaults to time.Now if nil (tests can
// substitute a fixed clock).
func New(window Window, maxDayLoss money.Money, staleThreshold time.Duration, heartbeat HeartbeatSource, pnl PnLSource, positions *position.Tracker, executor *trade.Executor) *Guard {
	return &Guard{
		window: window, maxDayLoss: maxDayLoss, staleThreshold: staleThreshold,
		heartbeat: heartbeat, pnl: pnl, positions: positions, executor: executor,
		now: time.Now,
	}
}

// SetPanic sets or clears the process-scoped panic flag from an external
// signal (e.g. a SIGUSR1 handler or an admin endpoint).
func (g *Guard) SetPanic(v bool) { g.panicFlag.Store(v) }

// Check implements SessionGuard.check(). The panic flag is evaluated first,
// then the market window, day loss and feed staleness; the first rule that
// trips decides the State.
func (g *Guard) Check() State {
	if g.panicFlag.Load() {
		return StatePanic
	}
	if !g.window.contains(g.now()) {
		return StateMarketClosed
	}
	if g.pnl != nil {
		total := g.pnl.Total()
		if total.IsNegative() && total.Neg().GreaterThanOrEqual(g.maxDayLoss) && !g.maxDayLoss.IsZero() {
			return StateDayLossLimit
		}
	}
	if g.heartbeat != nil && g.staleThreshold > 0 {
		if g.now().Sub(g.heartbeat.LastHeartbeat()) > g.staleThreshold {
			return StateFeedStale
		}
	}
	return StateOK
}

// ForceExitAll market-sells every open position, used when Check() reports
// anything other than ok. Errors are logged by the caller; ForceExitAll
// keeps going through the remaining positions on a single failure.
func (g *Guard) ForceExitAll(ctx context.Context, fee money.Money) []error {
	var errs []error
	for _, p := range g.positions.ListOpen() {
		if p.NetQty <= 0 {
			continue
		}
		if _, err := g.executor.Sell(ctx, p.ID, p.NetQty, p.CurrentPrice, fee, ""); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
