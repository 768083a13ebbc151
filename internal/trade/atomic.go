// Package trade implements AtomicTrade (C6): the single choke-point for
// BUY/SELL that combines the balance debit/credit, position mutation, and
// order record write into one critical section, per spec.md §4.6. Lock
// acquisition order is always balance -> position -> order store, matching
// spec.md §5's concurrency discipline.
package trade

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shubhamtaywade82/dhan-scalper/internal/balance"
	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/position"
	"github.com/shubhamtaywade82/dhan-scalper/internal/store"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// Result is the outcome of a Buy or Sell call.
type Result struct {
	OK          bool
	Reason      types.ErrorKind
	Order       types.Order
	RealizedPnL money.Money
}

// Executor is AtomicTrade: the only path through which Balance, Position,
// and the order log are mutated together.
type Executor struct {
	balance    balance.Provider
	positions  *position.Tracker
	store      store.Store
	ns         store.Namespace
	sessionID  string
	mode       types.Mode

	// keyMu serializes buy!/sell! per (segment, security_id, side) so two
	// AtomicTrade calls for the same key can never interleave their steps.
	keyMu sync.Map // map[string]*sync.Mutex
}

// New constructs an Executor wired to the session's balance, position, and
// store collaborators.
func New(bal balance.Provider, positions *position.Tracker, st store.Store, ns store.Namespace, sessionID string, mode types.Mode) *Executor {
	return &Executor{balance: bal, positions: positions, store: st, ns: ns, sessionID: sessionID, mode: mode}
}

func (x *Executor) lockFor(id types.PositionID) *sync.Mutex {
	v, _ := x.keyMu.LoadOrStore(id.String(), &sync.Mutex{})
	return v.(*sync.Mutex)
}

// replayed checks the idempotency store for a prior result under key and,
// if found, unmarshals and returns it instead of re-executing.
func (x *Executor) replayed(ctx context.Context, idempotencyKey string) (*Result, bool) {
	if idempotencyKey == "" || x.store == nil {
		return nil, false
	}
	raw, ok, err := x.store.HGet(ctx, x.ns.IdempKey(idempotencyKey), "result")
	if err != nil || !ok {
		return nil, false
	}
	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, false
	}
	return &r, true
}

func (x *Executor) remember(ctx context.Context, idempotencyKey string, r Result) {
	if idempotencyKey == "" || x.store == nil {
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	_ = x.store.HSet(ctx, x.ns.IdempKey(idempotencyKey), map[string]string{"result": string(b)})
	_ = x.store.Expire(ctx, x.ns.IdempKey(idempotencyKey), 10*time.Minute)
}

func (x *Executor) persistOrder(ctx context.Context, o types.Order) error {
	if x.store == nil {
		return nil
	}
	return x.store.Atomic(ctx, func(tx store.Tx) error {
		b, err := json.Marshal(o)
		if err != nil {
			return err
		}
		if err := tx.HSet(x.ns.OrderKey(o.OrderID), map[string]string{"data": string(b)}); err != nil {
			return err
		}
		return tx.LPush(x.ns.OrdersList(string(o.Mode), o.SessionID), o.OrderID)
	})
}

// Buy executes a BUY fill as a single critical section: compute cost, debit
// balance, mutate the position, persist the order. Steps 1-5 of spec.md
// §4.6.
func (x *Executor) Buy(ctx context.Context, id types.PositionID, qty int, price, fee money.Money, idempotencyKey string) (Result, error) {
	if cached, ok := x.replayed(ctx, idempotencyKey); ok {
		return *cached, nil
	}

	mu := x.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	cost := price.MulInt(qty).Add(fee)
	available, err := x.balance.Available(ctx)
	if err != nil {
		return Result{}, err
	}
	if available.LessThan(cost) {
		res := Result{OK: false, Reason: types.ErrInsufficientBalance}
		x.remember(ctx, idempotencyKey, res)
		return res, nil
	}

	if err := x.balance.Update(ctx, cost, balance.Debit); err != nil {
		return Result{}, err
	}

	x.positions.AddFill(id, qty, price, fee)

	order := types.Order{
		OrderID:        uuid.NewString(),
		SecurityID:     id.SecurityID,
		Segment:        id.Segment,
		Side:           types.SideLong,
		Quantity:       qty,
		FilledQuantity: qty,
		Price:          price,
		FilledPrice:    price,
		Fee:            fee,
		Status:         types.OrderFilled,
		CreatedAt:      time.Now(),
		FilledAt:       time.Now(),
		SessionID:      x.sessionID,
		Mode:           x.mode,
		PositionID:     id.String(),
	}
	if err := x.persistOrder(ctx, order); err != nil {
		return Result{}, fmt.Errorf("persist order: %w", err)
	}
	if x.store != nil {
		_ = x.store.SAdd(ctx, x.ns.PositionOpenSet(), id.String())
	}

	res := Result{OK: true, Order: order}
	x.remember(ctx, idempotencyKey, res)
	return res, nil
}

// Sell executes a SELL fill (full or partial exit), steps 1-5 of spec.md
// §4.6: reject if net_qty < qty, otherwise credit proceeds and record the
// realized P&L delta via Position.PartialExit.
func (x *Executor) Sell(ctx context.Context, id types.PositionID, qty int, price, fee money.Money, idempotencyKey string) (Result, error) {
	if cached, ok := x.replayed(ctx, idempotencyKey); ok {
		return *cached, nil
	}

	mu := x.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	pos, ok := x.positions.Get(id)
	if !ok || pos.NetQty < qty {
		res := Result{OK: false, Reason: types.ErrInsufficientPosition}
		x.remember(ctx, idempotencyKey, res)
		return res, nil
	}

	exit, err := x.positions.PartialExit(id, qty, price, fee)
	if err != nil {
		res := Result{OK: false, Reason: types.ErrInsufficientPosition}
		x.remember(ctx, idempotencyKey, res)
		return res, nil
	}

	if err := x.balance.Update(ctx, exit.NetProceeds, balance.Credit); err != nil {
		return Result{}, err
	}
	if err := x.balance.AddRealizedPnL(ctx, exit.RealizedPnL); err != nil {
		return Result{}, err
	}

	order := types.Order{
		OrderID:        uuid.NewString(),
		SecurityID:     id.SecurityID,
		Segment:        id.Segment,
		Side:           types.SideShort,
		Quantity:       qty,
		FilledQuantity: qty,
		Price:          price,
		FilledPrice:    price,
		Fee:            fee,
		Status:         types.OrderFilled,
		CreatedAt:      time.Now(),
		FilledAt:       time.Now(),
		SessionID:      x.sessionID,
		Mode:           x.mode,
		PositionID:     id.String(),
	}
	if err := x.persistOrder(ctx, order); err != nil {
		return Result{}, fmt.Errorf("persist order: %w", err)
	}

	if after, ok := x.positions.Get(id); ok && after.NetQty == 0 && x.store != nil {
		_ = x.store.SRem(ctx, x.ns.PositionOpenSet(), id.String())
	}

	res := Result{OK: true, Order: order, RealizedPnL: exit.RealizedPnL}
	x.remember(ctx, idempotencyKey, res)
	return res, nil
}
