package ticks

import (
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

func mkTick(sid string, ltp float64, ts time.Time) types.Tick {
	return types.Tick{
		Segment:    "NSE_FNO",
		SecurityID: sid,
		LTP:        money.FromFloat(ltp),
		ServerTime: ts,
		ReceivedAt: time.Now(),
	}
}

func TestOutOfOrderDropped(t *testing.T) {
	c := New(nil, 0)
	base := time.Now()

	c.Put(mkTick("101", 100, base))
	c.Put(mkTick("101", 90, base.Add(-time.Second))) // older, must be dropped

	got, ok := c.Get("NSE_FNO", "101")
	if !ok {
		t.Fatal("expected tick present")
	}
	if !got.LTP.Equal(money.FromFloat(100)) {
		t.Fatalf("expected ltp=100 (greatest server_timestamp wins), got %s", got.LTP)
	}
	if c.Stats().Drops != 1 {
		t.Fatalf("expected 1 drop, got %d", c.Stats().Drops)
	}
}

func TestLastWriterWinsOnEqualOrNewer(t *testing.T) {
	c := New(nil, 0)
	base := time.Now()

	c.Put(mkTick("101", 100, base))
	c.Put(mkTick("101", 105, base)) // same timestamp: allowed, last-writer-wins

	got, _ := c.Get("NSE_FNO", "101")
	if !got.LTP.Equal(money.FromFloat(105)) {
		t.Fatalf("expected ltp=105, got %s", got.LTP)
	}
}

func TestFreshness(t *testing.T) {
	c := New(nil, 0)
	tick := mkTick("101", 100, time.Now())
	tick.ReceivedAt = time.Now().Add(-2 * time.Second)
	c.Put(tick)

	if c.Fresh("NSE_FNO", "101", time.Second) {
		t.Fatal("expected stale tick to fail freshness check")
	}
	if !c.Fresh("NSE_FNO", "101", 5*time.Second) {
		t.Fatal("expected tick within 5s window to be fresh")
	}
}

func TestMicroCacheTTL(t *testing.T) {
	c := New(nil, 50*time.Millisecond)
	c.Put(mkTick("101", 100, time.Now()))

	if _, ok := c.Get("NSE_FNO", "101"); !ok {
		t.Fatal("expected hit from micro-cache")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("NSE_FNO", "101"); !ok {
		t.Fatal("expected fallback to primary map after micro-cache expiry")
	}
}
