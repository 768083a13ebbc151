// Package exit implements ExitManager/RiskEngine (C14): the ordered,
// first-match-wins rule chain applied to every open position on each
// decision tick, per spec.md §4.14. The rule ordering and the
// idempotent-within-a-window exit semantics are new to this domain, but the
// "release the lock around I/O, mutate under lock" discipline is the same
// one the teacher's trader.go/step.go use for position risk fields.
package exit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shubhamtaywade82/dhan-scalper/internal/broker"
	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/position"
	"github.com/shubhamtaywade82/dhan-scalper/internal/trade"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// Reason is the exit trigger recorded on each sell order for reporting.
type Reason string

const (
	ReasonEmergencyFloor   Reason = "emergency_floor"
	ReasonSessionInvariant Reason = "session_invariant"
	ReasonSignalInvalidation Reason = "signal_invalidation"
	ReasonTakeProfit       Reason = "take_profit"
	ReasonStopLoss         Reason = "stop_loss"
)

// SignalLookup resolves the current indicator verdict for a position's
// underlying, used for rule 3 (signal invalidation).
type SignalLookup func(underlying string) (types.Signal, bool)

// Params are the risk knobs applied to one underlying's positions;
// cmd/scalper fills them from the global.* config keys.
type Params struct {
	EmergencyFloor        money.Money
	BreakevenThresholdPct float64
	FeePerLot             money.Money
	TrailPct              float64
	RupeeStep             money.Money
	SellFee               money.Money
}

// ParamsLookup resolves risk Params for a position's underlying.
type ParamsLookup func(underlying string) Params

// Manager is ExitManager/RiskEngine (C14).
type Manager struct {
	positions *position.Tracker
	executor  *trade.Executor
	broker    broker.Broker
	log       *logrus.Entry

	mu         sync.Mutex
	lastExit   map[string]time.Time // key: positionID|reason
}

// New wires ExitManager's collaborators. brk places the actual market sell;
// its fill is what AtomicTrade books against the balance and position. brk
// may be nil, in which case the position's last-marked price is used
// directly (the paper-fill shortcut tests rely on).
func New(positions *position.Tracker, executor *trade.Executor, brk broker.Broker, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		positions: positions,
		executor:  executor,
		broker:    brk,
		log:       log.WithField("component", "exitmanager"),
		lastExit:  make(map[string]time.Time),
	}
}

// idempotencyWindow is the 10-second duplicate-exit suppression window from
// spec.md §4.14.
const idempotencyWindow = 10 * time.Second

func (m *Manager) alreadyExited(id types.PositionID, reason Reason) bool {
	key := id.String() + "|" + string(reason)
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastExit[key]
	return ok && time.Since(last) < idempotencyWindow
}

// markExited opens the idempotency window for id/reason. Called only after a
// sell actually fills, so a rejected order is retried on the next tick
// instead of being suppressed for the rest of the window.
func (m *Manager) markExited(id types.PositionID, reason Reason) {
	key := id.String() + "|" + string(reason)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastExit[key] = time.Now()
}

// Tick evaluates every open position against the rule chain. sessionOK
// mirrors SessionGuard.check() == ok for rule 2; signals resolves rule 3's
// opposite-direction check; params resolves the per-symbol risk knobs.
func (m *Manager) Tick(ctx context.Context, sessionOK bool, signals SignalLookup, params ParamsLookup) {
	for _, p := range m.positions.ListOpen() {
		m.evaluate(ctx, p, sessionOK, signals, params(p.Underlying))
	}
}

func (m *Manager) evaluate(ctx context.Context, p types.Position, sessionOK bool, signals SignalLookup, rp Params) {
	id := p.ID

	// Rule 1: emergency floor.
	if !rp.EmergencyFloor.IsZero() && p.UnrealizedPnL.LessThanOrEqual(rp.EmergencyFloor.Neg()) {
		m.exit(ctx, id, p, ReasonEmergencyFloor, rp)
		return
	}

	// Rule 2: session invariant (force-exit-all).
	if !sessionOK {
		m.exit(ctx, id, p, ReasonSessionInvariant, rp)
		return
	}

	// Rule 3: signal invalidation — opposite confirmed signal.
	if signals != nil {
		if sig, ok := signals(p.Underlying); ok && sig.Proceed {
			opposite := (p.Right == types.RightCall && sig.Direction == types.DirectionBearish) ||
				(p.Right == types.RightPut && sig.Direction == types.DirectionBullish)
			if opposite {
				m.exit(ctx, id, p, ReasonSignalInvalidation, rp)
				return
			}
		}
	}

	// Rule 4: take-profit.
	if p.CurrentPrice.GreaterThanOrEqual(p.TakeProfit) {
		m.exit(ctx, id, p, ReasonTakeProfit, rp)
		return
	}

	// Rule 5: hard stop-loss.
	if p.CurrentPrice.LessThanOrEqual(p.StopLoss) {
		m.exit(ctx, id, p, ReasonStopLoss, rp)
		return
	}

	// Rule 6: breakeven lock (mutation, not an exit).
	// Rule 7: trailing stop (mutation, not an exit).
	m.positions.Mutate(id, func(mut *types.Position) {
		breakevenTrigger := mut.BuyAvg.MulFloat(1 + rp.BreakevenThresholdPct)
		if !mut.BreakevenSet && mut.CurrentPrice.GreaterThanOrEqual(breakevenTrigger) {
			floor := mut.BuyAvg.Add(rp.FeePerLot)
			if floor.GreaterThan(mut.StopLoss) {
				mut.StopLoss = floor
			}
			mut.BreakevenSet = true
		}

		if mut.CurrentPrice.GreaterThan(mut.PeakPrice) {
			mut.PeakPrice = mut.CurrentPrice
		}
		newTrail := mut.PeakPrice.MulFloat(1 - rp.TrailPct)
		if !rp.RupeeStep.IsZero() {
			newTrail = snapUp(newTrail, rp.RupeeStep)
		}
		if newTrail.GreaterThan(mut.StopLoss) {
			mut.StopLoss = newTrail
		}
	})
}

// snapUp rounds trail up to the nearest multiple of step (ceiling, not
// floor) so the trailing stop only ever ratchets in the position's favor.
func snapUp(value, step money.Money) money.Money {
	if step.IsZero() {
		return value
	}
	div, err := value.Div(step)
	if err != nil {
		return value
	}
	units := math.Ceil(div.Float64())
	return money.FromFloat(units * step.Float64())
}

func (m *Manager) exit(ctx context.Context, id types.PositionID, p types.Position, reason Reason, rp Params) {
	if m.alreadyExited(id, reason) {
		return
	}
	qty := p.NetQty
	if qty <= 0 {
		return
	}
	fillPrice := p.CurrentPrice
	if m.broker != nil {
		orderRes, err := m.broker.SellMarket(ctx, id.Segment, id.SecurityID, int64(qty), rp.SellFee)
		if err != nil || !orderRes.OK {
			m.log.WithFields(logrus.Fields{"position": id.String(), "reason": reason}).Warn("broker sell rejected, will retry next decision tick")
			return
		}
		fillPrice = orderRes.FilledPrice
	}
	res, err := m.executor.Sell(ctx, id, qty, fillPrice, rp.SellFee, "")
	if err != nil {
		m.log.WithError(err).WithField("position", id.String()).Error("exit order failed")
		return
	}
	if !res.OK {
		m.log.WithFields(logrus.Fields{"position": id.String(), "reason": reason, "rejection": res.Reason}).
			Warn("exit rejected, will retry next decision tick")
		return
	}
	m.markExited(id, reason)
	m.log.WithFields(logrus.Fields{"position": id.String(), "reason": reason, "qty": qty}).Info("position exited")
}
