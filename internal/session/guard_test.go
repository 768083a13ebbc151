package session

import (
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/balance"
	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/position"
	"github.com/shubhamtaywade82/dhan-scalper/internal/store"
	"github.com/shubhamtaywade82/dhan-scalper/internal/trade"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

type fixedHeartbeat struct{ t time.Time }

func (f fixedHeartbeat) LastHeartbeat() time.Time { return f.t }

type fixedPnL struct{ total money.Money }

func (f fixedPnL) Total() money.Money { return f.total }

func newGuard(t *testing.T, now time.Time, hb time.Time, pnlTotal money.Money, maxDayLoss money.Money, window Window) *Guard {
	bal := balance.NewSimulated(money.FromInt(100000))
	pos := position.New()
	st := store.NewMemory()
	ex := trade.New(bal, pos, st, store.Namespace("test"), "sess-1", types.ModePaper)
	g := New(window, maxDayLoss, 60*time.Second, fixedHeartbeat{hb}, fixedPnL{pnlTotal}, pos, ex)
	g.now = func() time.Time { return now }
	return g
}

func TestMarketClosedOutsideWindow(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	window := Window{Open: 9*time.Hour + 15*time.Minute, Close: 15*time.Hour + 30*time.Minute, Grace: time.Minute}
	now := base.Add(20 * time.Hour) // 8pm, well outside window
	g := newGuard(t, now, now, money.Zero, money.FromInt(5000), window)
	if g.Check() != StateMarketClosed {
		t.Fatalf("expected market_closed, got %s", g.Check())
	}
}

func TestDayLossLimitTriggers(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	window := Window{Open: 9*time.Hour + 15*time.Minute, Close: 15*time.Hour + 30*time.Minute}
	g := newGuard(t, base, base, money.FromInt(-6000), money.FromInt(5000), window)
	if g.Check() != StateDayLossLimit {
		t.Fatalf("expected day_loss_limit, got %s", g.Check())
	}
}

func TestFeedStaleTriggers(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	window := Window{Open: 9*time.Hour + 15*time.Minute, Close: 15*time.Hour + 30*time.Minute}
	stale := base.Add(-2 * time.Minute)
	g := newGuard(t, base, stale, money.Zero, money.FromInt(5000), window)
	if g.Check() != StateFeedStale {
		t.Fatalf("expected feed_stale, got %s", g.Check())
	}
}

func TestPanicFlagOverridesEverything(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	window := Window{Open: 9*time.Hour + 15*time.Minute, Close: 15*time.Hour + 30*time.Minute}
	g := newGuard(t, base, base, money.Zero, money.FromInt(5000), window)
	g.SetPanic(true)
	if g.Check() != StatePanic {
		t.Fatalf("expected panic, got %s", g.Check())
	}
}

func TestOKWithinWindow(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	window := Window{Open: 9*time.Hour + 15*time.Minute, Close: 15*time.Hour + 30*time.Minute}
	g := newGuard(t, base, base, money.Zero, money.FromInt(5000), window)
	if g.Check() != StateOK {
		t.Fatalf("expected ok, got %s", g.Check())
	}
}
