package series

import (
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

func TestSeedThenAppendAccumulates(t *testing.T) {
	s := New()
	seed := types.CandleSeries{Instrument: "NIFTY"}
	seed.Append(types.Candle{Open: 100, High: 101, Low: 99, Close: 100.5, Time: time.Now()})
	s.Seed("NIFTY", seed, types.CandleSeries{})

	s.AppendPrimary("NIFTY", types.Candle{Open: 100.5, High: 102, Low: 100, Close: 101, Time: time.Now()})

	got, ok := s.Primary("NIFTY")
	if !ok || len(got.Candles) != 2 {
		t.Fatalf("expected 2 candles after seed+append, got ok=%v len=%d", ok, len(got.Candles))
	}
}

func TestSpotRoundTrip(t *testing.T) {
	s := New()
	if _, ok := s.Spot("NIFTY"); ok {
		t.Fatal("expected no spot before SetSpot")
	}
	s.SetSpot("NIFTY", 24567.25)
	v, ok := s.Spot("NIFTY")
	if !ok || v != 24567.25 {
		t.Fatalf("spot = %v, ok=%v, want 24567.25", v, ok)
	}
}

func TestMissingSymbolReturnsFalse(t *testing.T) {
	s := New()
	if _, ok := s.Primary("GHOST"); ok {
		t.Fatal("expected false for unseeded symbol")
	}
}
