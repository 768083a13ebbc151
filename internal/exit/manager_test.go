package exit

import (
	"context"
	"testing"

	"github.com/shubhamtaywade82/dhan-scalper/internal/balance"
	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/position"
	"github.com/shubhamtaywade82/dhan-scalper/internal/store"
	"github.com/shubhamtaywade82/dhan-scalper/internal/trade"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

func setup(t *testing.T) (*position.Tracker, *trade.Executor, types.PositionID) {
	bal := balance.NewSimulated(money.FromInt(100000))
	pos := position.New()
	st := store.NewMemory()
	ex := trade.New(bal, pos, st, store.Namespace("test"), "sess-1", types.ModePaper)
	id := types.PositionID{Segment: "NSE_FNO", SecurityID: "CE-1", Side: types.SideLong}
	if _, err := ex.Buy(context.Background(), id, 75, money.FromInt(100), money.FromInt(20), ""); err != nil {
		t.Fatal(err)
	}
	pos.Mutate(id, func(p *types.Position) {
		p.Underlying = "NIFTY"
		p.Right = types.RightCall
		p.PeakPrice = money.FromInt(100)
		p.StopLoss = money.FromInt(90)
		p.TakeProfit = money.FromInt(120)
	})
	return pos, ex, id
}

func noParams(string) Params { return Params{SellFee: money.FromInt(20)} }

func TestTakeProfitExits(t *testing.T) {
	pos, ex, id := setup(t)
	pos.UpdateUnrealized(staticLTP{price: money.FromInt(125)})
	m := New(pos, ex, nil, nil)
	m.Tick(context.Background(), true, nil, noParams)

	p, ok := pos.Get(id)
	if !ok || p.IsOpen() {
		t.Fatalf("expected position closed by take-profit, got %+v ok=%v", p, ok)
	}
}

func TestHardStopLossExits(t *testing.T) {
	pos, ex, id := setup(t)
	pos.UpdateUnrealized(staticLTP{price: money.FromInt(85)})
	m := New(pos, ex, nil, nil)
	m.Tick(context.Background(), true, nil, noParams)

	p, ok := pos.Get(id)
	if !ok || p.IsOpen() {
		t.Fatalf("expected position closed by stop-loss, got %+v ok=%v", p, ok)
	}
}

func TestSessionInvariantForcesExit(t *testing.T) {
	pos, ex, id := setup(t)
	pos.UpdateUnrealized(staticLTP{price: money.FromInt(105)}) // inside SL/TP band
	m := New(pos, ex, nil, nil)
	m.Tick(context.Background(), false, nil, noParams)

	p, ok := pos.Get(id)
	if !ok || p.IsOpen() {
		t.Fatalf("expected session invariant to force exit, got %+v ok=%v", p, ok)
	}
}

func TestTrailingStopRatchetsUpNeverDown(t *testing.T) {
	pos, ex, id := setup(t)
	params := func(string) Params {
		return Params{TrailPct: 0.1, BreakevenThresholdPct: 1.0, SellFee: money.FromInt(20)}
	}

	pos.UpdateUnrealized(staticLTP{price: money.FromInt(110)})
	m := New(pos, ex, nil, nil)
	m.Tick(context.Background(), true, nil, params)
	p1, _ := pos.Get(id)

	pos.UpdateUnrealized(staticLTP{price: money.FromInt(105)}) // pulls back, should not lower stop
	m.Tick(context.Background(), true, nil, params)
	p2, _ := pos.Get(id)

	if !p2.StopLoss.Equal(p1.StopLoss) {
		t.Fatalf("stop loss must not retreat on pullback: before=%s after=%s", p1.StopLoss, p2.StopLoss)
	}
}

func TestBreakevenLockRaisesStopToEntryPlusFee(t *testing.T) {
	pos, ex, id := setup(t)
	params := func(string) Params {
		return Params{BreakevenThresholdPct: 0.05, FeePerLot: money.FromInt(20), SellFee: money.FromInt(20)}
	}
	pos.UpdateUnrealized(staticLTP{price: money.FromInt(110)}) // > 100*1.05
	m := New(pos, ex, nil, nil)
	m.Tick(context.Background(), true, nil, params)

	p, _ := pos.Get(id)
	if !p.BreakevenSet {
		t.Fatal("expected breakeven to be marked set")
	}
	want := money.FromInt(100).Add(money.FromInt(20))
	if !p.StopLoss.Equal(want) {
		t.Fatalf("stop loss = %s, want %s (buy_avg + fee_per_lot)", p.StopLoss, want)
	}
}

type staticLTP struct{ price money.Money }

func (s staticLTP) LTP(segment, securityID string) (money.Money, bool) { return s.price, true }
