// Package sizing implements QuantitySizer (C9): lot count from available
// balance, allocation fraction, slippage buffer, and per-trade/per-symbol
// caps, per spec.md §4.9.
package sizing

import (
	"math"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
)

// Params are the per-symbol sizing knobs from config (global.* and
// SYMBOLS.<sym>.*).
type Params struct {
	AllocationPct    float64
	SlippageBufferPct float64
	LotSize          int
	MaxLotsPerTrade  int
	QtyMultiplierCap int
}

// Sizer computes lots from available balance and a premium quote.
type Sizer struct{}

// New constructs a Sizer. Stateless; kept as a type for interface symmetry
// with the engine's other components.
func New() *Sizer { return &Sizer{} }

// Lots implements the formula from spec.md §4.9:
//
//	alloc      = available * allocation_pct
//	adj_prem   = premium * (1 + slippage_buffer)
//	raw_lots   = floor(alloc / (adj_prem * lot_size))
//	lots       = max(0, min(raw_lots, max_lots_per_trade, qty_multiplier_cap))
//
// Returns 0 when premium <= 0, available <= 0, or lot_size is missing.
func (s *Sizer) Lots(available money.Money, premium money.Money, p Params) int {
	if premium.LessThanOrEqual(money.Zero) || available.LessThanOrEqual(money.Zero) || p.LotSize <= 0 {
		return 0
	}

	alloc := available.MulFloat(p.AllocationPct)
	adjPremium := premium.MulFloat(1 + p.SlippageBufferPct)
	perLotCost := adjPremium.MulInt(p.LotSize)
	if perLotCost.LessThanOrEqual(money.Zero) {
		return 0
	}

	raw, err := alloc.Div(perLotCost)
	if err != nil {
		return 0
	}
	rawLots := int(math.Floor(raw.Float64()))
	if rawLots < 0 {
		rawLots = 0
	}

	capped := rawLots
	if p.MaxLotsPerTrade > 0 && capped > p.MaxLotsPerTrade {
		capped = p.MaxLotsPerTrade
	}
	if p.QtyMultiplierCap > 0 && capped > p.QtyMultiplierCap {
		capped = p.QtyMultiplierCap
	}
	if capped < 0 {
		capped = 0
	}
	return capped
}
