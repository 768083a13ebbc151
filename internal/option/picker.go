// Package option implements OptionPicker (C8): nearest-expiry, ATM-strike
// selection from a spot price, per spec.md §4.8.
package option

import (
	"fmt"
	"math"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// Resolver is the narrow slice of instrument.Resolver OptionPicker needs.
type Resolver interface {
	Expiries(symbol string) []time.Time
	SecurityID(symbol string, expiry time.Time, strike float64, right types.Right) (string, bool)
}

// Pick is the selection returned for one decision tick.
type Pick struct {
	Symbol  string
	Expiry  time.Time
	Strikes [3]float64 // [atm-step, atm, atm+step]
	CallSID map[float64]string
	PutSID  map[float64]string
}

// Picker resolves symbol + spot price into tradeable ATM contracts.
type Picker struct {
	resolver Resolver
	paper    bool
}

// New constructs a Picker. paper=true makes unresolved ids fall back to a
// synthetic tag so dry runs never abort on missing resolver data.
func New(resolver Resolver, paper bool) *Picker {
	return &Picker{resolver: resolver, paper: paper}
}

// nearestStrike rounds spot to the nearest multiple of step.
func nearestStrike(spot, step float64) float64 {
	if step <= 0 {
		return spot
	}
	return math.Round(spot/step) * step
}

// nearestExpiry returns the smallest expiry >= today among known, falling
// back to the next date matching expiryWeekday when the resolver has none.
func nearestExpiry(known []time.Time, today time.Time, expiryWeekday time.Weekday) time.Time {
	best := time.Time{}
	todayDate := today.Format("2006-01-02")
	for _, e := range known {
		if e.Format("2006-01-02") >= todayDate && (best.IsZero() || e.Before(best)) {
			best = e
		}
	}
	if !best.IsZero() {
		return best
	}
	d := today
	for d.Weekday() != expiryWeekday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// Pick selects the nearest expiry and ATM ± one step strike ladder for
// symbol given its current spot price.
func (p *Picker) Pick(symbol string, spot, strikeStep float64, expiryWeekday time.Weekday, now time.Time) Pick {
	expiry := nearestExpiry(p.resolver.Expiries(symbol), now, expiryWeekday)
	atm := nearestStrike(spot, strikeStep)
	strikes := [3]float64{atm - strikeStep, atm, atm + strikeStep}

	pick := Pick{
		Symbol:  symbol,
		Expiry:  expiry,
		Strikes: strikes,
		CallSID: make(map[float64]string, 3),
		PutSID:  make(map[float64]string, 3),
	}
	for _, strike := range strikes {
		if sid, ok := p.resolver.SecurityID(symbol, expiry, strike, types.RightCall); ok {
			pick.CallSID[strike] = sid
		} else if p.paper {
			pick.CallSID[strike] = syntheticTag(symbol, expiry, strike, types.RightCall)
		}
		if sid, ok := p.resolver.SecurityID(symbol, expiry, strike, types.RightPut); ok {
			pick.PutSID[strike] = sid
		} else if p.paper {
			pick.PutSID[strike] = syntheticTag(symbol, expiry, strike, types.RightPut)
		}
	}
	return pick
}

// ATM returns the at-the-money strike from a Pick.
func (p Pick) ATM() float64 { return p.Strikes[1] }

// SecurityIDFor resolves the strike/right pair to a security id, or ("",
// false) if resolution failed (fatal in live mode per spec.md §4.8).
func (p Pick) SecurityIDFor(strike float64, right types.Right) (string, bool) {
	if right == types.RightCall {
		sid, ok := p.CallSID[strike]
		return sid, ok
	}
	sid, ok := p.PutSID[strike]
	return sid, ok
}

func syntheticTag(symbol string, expiry time.Time, strike float64, right types.Right) string {
	return fmt.Sprintf("SYN:%s:%s:%.0f:%s", symbol, expiry.Format("2006-01-02"), strike, right)
}
