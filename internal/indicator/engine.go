package indicator

import (
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// Composite selects which verdict function Engine.Evaluate runs.
type Composite string

const (
	CompositeBasic    Composite = "basic"
	CompositeEnhanced Composite = "enhanced"
)

// Params are the indicator knobs for one timeframe. cmd/scalper fills them
// with fixed values; they are not read from config.
type Params struct {
	Composite    Composite
	EMAFast      int
	EMASlow      int
	RSIPeriod    int
	RSIBullAbove float64
	RSIBearBelow float64
	ADXPeriod    int
	ADXMin       float64
	SupertrendN  int
	SupertrendM  float64
}

// Engine evaluates candle series into a Signal per spec.md §4.10. Stateless;
// all inputs come from the caller's CandleSeries, following the teacher's
// indicators.go pattern of pure functions over closes.
type Engine struct{}

// New constructs an Engine.
func New() *Engine { return &Engine{} }

// verdict is the single-timeframe read before multi-timeframe agreement is
// checked.
type verdict struct {
	direction types.SignalDirection
	strength  float64
	adx       float64
	ok        bool // series long enough and composite conditions met
}

func (e *Engine) oneTimeframe(series types.CandleSeries, p Params) verdict {
	candles := series.Candles
	closes := series.Closes()

	longest := p.EMASlow
	if p.RSIPeriod > longest {
		longest = p.RSIPeriod
	}
	if p.Composite == CompositeEnhanced {
		if p.ADXPeriod*2 > longest {
			longest = p.ADXPeriod * 2
		}
		if p.SupertrendN > longest {
			longest = p.SupertrendN
		}
	}
	if len(candles) <= longest {
		return verdict{direction: types.DirectionNone}
	}

	emaFast := EMA(closes, p.EMAFast)
	emaSlow := EMA(closes, p.EMASlow)
	rsi := RSI(closes, p.RSIPeriod)
	last := len(closes) - 1

	bullishCross := emaFast[last] > emaSlow[last] && rsi[last] > p.RSIBullAbove
	bearishCross := emaFast[last] < emaSlow[last] && rsi[last] < p.RSIBearBelow

	direction := types.DirectionNone
	switch {
	case bullishCross:
		direction = types.DirectionBullish
	case bearishCross:
		direction = types.DirectionBearish
	}

	strength := emaFast[last] - emaSlow[last]
	if strength < 0 {
		strength = -strength
	}

	v := verdict{direction: direction, strength: strength, ok: direction != types.DirectionNone}
	if p.Composite == CompositeBasic {
		return v
	}

	adx := ADX(candles, p.ADXPeriod)
	_, trend := Supertrend(candles, p.SupertrendN, p.SupertrendM)
	v.adx = adx[last]

	if v.adx < p.ADXMin {
		v.ok = false
	}
	switch direction {
	case types.DirectionBullish:
		if !trend[last] {
			v.ok = false
		}
	case types.DirectionBearish:
		if trend[last] {
			v.ok = false
		}
	}
	return v
}

// Evaluate implements IndicatorEngine.evaluate per spec.md §4.10: primary is
// required, secondary is optional confirmation. proceed=true only when both
// timeframes (when secondary is supplied) agree on direction and, for the
// Enhanced composite, both clear their ADX floor and Supertrend confirmation.
func (e *Engine) Evaluate(primary types.CandleSeries, secondary *types.CandleSeries, pPrimary, pSecondary Params) types.Signal {
	p := e.oneTimeframe(primary, pPrimary)
	if p.direction == types.DirectionNone {
		return types.Signal{Direction: types.DirectionNone, Proceed: false, Reason: "insufficient_history_or_no_crossover"}
	}

	if secondary == nil {
		return types.Signal{Direction: p.direction, Strength: p.strength, ADX: p.adx, Proceed: p.ok}
	}

	s := e.oneTimeframe(*secondary, pSecondary)
	proceed := p.ok && s.ok && p.direction == s.direction
	reason := ""
	if !proceed {
		reason = "timeframe_disagreement_or_gate_failed"
	}
	strength := p.strength
	adx := p.adx
	if s.adx > adx {
		adx = s.adx
	}
	return types.Signal{Direction: p.direction, Strength: strength, ADX: adx, Proceed: proceed, Reason: reason}
}
