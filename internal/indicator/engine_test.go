package indicator

import (
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

func uptrend(n int, start float64) types.CandleSeries {
	s := types.CandleSeries{Instrument: "TEST", Interval: time.Minute}
	price := start
	for i := 0; i < n; i++ {
		price += 1.0
		s.Append(types.Candle{
			Time:  time.Now().Add(time.Duration(i) * time.Minute),
			Open:  price - 0.5,
			High:  price + 0.5,
			Low:   price - 1,
			Close: price,
		})
	}
	return s
}

func downtrend(n int, start float64) types.CandleSeries {
	s := types.CandleSeries{Instrument: "TEST", Interval: time.Minute}
	price := start
	for i := 0; i < n; i++ {
		price -= 1.0
		s.Append(types.Candle{
			Time:  time.Now().Add(time.Duration(i) * time.Minute),
			Open:  price + 0.5,
			High:  price + 1,
			Low:   price - 0.5,
			Close: price,
		})
	}
	return s
}

func basicParams() Params {
	return Params{Composite: CompositeBasic, EMAFast: 4, EMASlow: 8, RSIPeriod: 14, RSIBullAbove: 50, RSIBearBelow: 50}
}

func TestEvaluateInsufficientHistoryReturnsNone(t *testing.T) {
	e := New()
	series := uptrend(5, 100)
	sig := e.Evaluate(series, nil, basicParams(), Params{})
	if sig.Direction != types.DirectionNone || sig.Proceed {
		t.Fatalf("expected none/no-proceed on short series, got %+v", sig)
	}
}

func TestEvaluateBasicBullishSingleTimeframe(t *testing.T) {
	e := New()
	series := uptrend(40, 100)
	sig := e.Evaluate(series, nil, basicParams(), Params{})
	if sig.Direction != types.DirectionBullish {
		t.Fatalf("expected bullish on sustained uptrend, got %+v", sig)
	}
	if !sig.Proceed {
		t.Fatalf("single timeframe basic composite should proceed when direction is decided, got %+v", sig)
	}
}

func TestEvaluateBasicBearishSingleTimeframe(t *testing.T) {
	e := New()
	series := downtrend(40, 200)
	sig := e.Evaluate(series, nil, basicParams(), Params{})
	if sig.Direction != types.DirectionBearish {
		t.Fatalf("expected bearish on sustained downtrend, got %+v", sig)
	}
}

func TestEvaluateMultiTimeframeDisagreementBlocksProceed(t *testing.T) {
	e := New()
	primary := uptrend(40, 100)
	secondary := downtrend(40, 200)
	sig := e.Evaluate(primary, &secondary, basicParams(), basicParams())
	if sig.Proceed {
		t.Fatalf("disagreeing timeframes must not proceed, got %+v", sig)
	}
}

func TestEvaluateMultiTimeframeAgreementProceeds(t *testing.T) {
	e := New()
	primary := uptrend(40, 100)
	secondary := uptrend(40, 100)
	sig := e.Evaluate(primary, &secondary, basicParams(), basicParams())
	if !sig.Proceed || sig.Direction != types.DirectionBullish {
		t.Fatalf("agreeing bullish timeframes should proceed bullish, got %+v", sig)
	}
}

func TestEvaluateEnhancedRequiresADXFloor(t *testing.T) {
	e := New()
	series := uptrend(60, 100)
	p := basicParams()
	p.Composite = CompositeEnhanced
	p.ADXPeriod = 14
	p.ADXMin = 1000 // unreachable floor forces gate failure
	p.SupertrendN = 10
	p.SupertrendM = 3
	sig := e.Evaluate(series, nil, p, Params{})
	if sig.Proceed {
		t.Fatalf("unreachable ADX floor must block proceed, got %+v", sig)
	}
}
