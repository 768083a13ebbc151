// Package indicator implements the classical TA building blocks (EMA, RSI,
// ADX, Supertrend) and composes them into the Basic/Enhanced signal verdicts
// IndicatorEngine (C10) returns, per spec.md §4.10. Formulas follow the
// teacher's own indicators.go conventions (aligned output slices, NaN/zero
// for unavailable lookbacks, Wilder smoothing for RSI) generalized to the
// additional indicators the option-scalping composite needs.
package indicator

import (
	"math"

	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// EMA returns the n-period exponential moving average of closes, aligned to
// the input. Indices before the first full window hold NaN.
func EMA(closes []float64, n int) []float64 {
	out := make([]float64, len(closes))
	if n <= 0 || len(closes) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	k := 2.0 / (float64(n) + 1.0)
	var sum float64
	for i, c := range closes {
		if i < n {
			sum += c
			if i < n-1 {
				out[i] = math.NaN()
				continue
			}
			out[i] = sum / float64(n)
			continue
		}
		out[i] = c*k + out[i-1]*(1-k)
	}
	return out
}

// RSI returns the n-period Relative Strength Index using Wilder's smoothing,
// identical in shape to the teacher's indicators.go RSI.
func RSI(closes []float64, n int) []float64 {
	out := make([]float64, len(closes))
	if n <= 0 || len(closes) == 0 {
		return out
	}
	var gain, loss float64
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if i <= n {
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
			if i == n {
				avgGain, avgLoss := gain/float64(n), loss/float64(n)
				out[i] = rsiFromAverages(avgGain, avgLoss)
			}
			continue
		}
		if d > 0 {
			gain = (gain*float64(n-1) + d) / float64(n)
			loss = (loss * float64(n-1)) / float64(n)
		} else {
			gain = (gain * float64(n-1)) / float64(n)
			loss = (loss*float64(n-1) - d) / float64(n)
		}
		out[i] = rsiFromAverages(gain, loss)
	}
	return out
}

// rsiFromAverages converts average gain/loss into the 0-100 RSI scale,
// handling the zero-loss (RSI=100) and no-movement (RSI=50) edge cases that
// a naive gain/loss ratio gets backwards.
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	default:
		rs := avgGain / avgLoss
		return 100 - 100/(1+rs)
	}
}

// trueRange computes the single-bar true range for ATR/ADX/Supertrend.
func trueRange(c []types.Candle, i int) float64 {
	if i == 0 {
		return c[i].High - c[i].Low
	}
	hl := c[i].High - c[i].Low
	hc := math.Abs(c[i].High - c[i-1].Close)
	lc := math.Abs(c[i].Low - c[i-1].Close)
	return math.Max(hl, math.Max(hc, lc))
}

// ATR returns the n-period Average True Range (Wilder smoothing), aligned.
func ATR(c []types.Candle, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 0 || len(c) == 0 {
		return out
	}
	var sum float64
	for i := range c {
		tr := trueRange(c, i)
		if i < n {
			sum += tr
			if i == n-1 {
				out[i] = sum / float64(n)
			}
			continue
		}
		out[i] = (out[i-1]*float64(n-1) + tr) / float64(n)
	}
	return out
}

// ADX returns the n-period Average Directional Index, the classical
// Wilder composite of +DI/-DI smoothed true range and directional movement.
func ADX(c []types.Candle, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 0 || len(c) < n+1 {
		return out
	}
	plusDM := make([]float64, len(c))
	minusDM := make([]float64, len(c))
	tr := make([]float64, len(c))
	for i := 1; i < len(c); i++ {
		upMove := c[i].High - c[i-1].High
		downMove := c[i-1].Low - c[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		tr[i] = trueRange(c, i)
	}

	smooth := func(series []float64) []float64 {
		sm := make([]float64, len(series))
		var sum float64
		for i := 1; i <= n && i < len(series); i++ {
			sum += series[i]
		}
		if n < len(series) {
			sm[n] = sum
		}
		for i := n + 1; i < len(series); i++ {
			sm[i] = sm[i-1] - sm[i-1]/float64(n) + series[i]
		}
		return sm
	}
	smTR := smooth(tr)
	smPlus := smooth(plusDM)
	smMinus := smooth(minusDM)

	dx := make([]float64, len(c))
	for i := n; i < len(c); i++ {
		if smTR[i] == 0 {
			continue
		}
		plusDI := 100 * smPlus[i] / smTR[i]
		minusDI := 100 * smMinus[i] / smTR[i]
		denom := plusDI + minusDI
		if denom == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / denom
	}

	var adxSum float64
	count := 0
	for i := n; i < len(c) && count < n; i++ {
		adxSum += dx[i]
		count++
		if count == n {
			out[i] = adxSum / float64(n)
		}
	}
	for i := 2*n - 1; i < len(c)-1; i++ {
		if i+1 >= len(out) {
			break
		}
		out[i+1] = (out[i]*float64(n-1) + dx[i+1]) / float64(n)
	}
	return out
}

// Supertrend returns the Supertrend line using the classical ATR-band flip
// rule (multiplier m, period n). trend[i]=true means price is above the
// line (bullish regime).
func Supertrend(c []types.Candle, n int, m float64) (line []float64, trend []bool) {
	atr := ATR(c, n)
	line = make([]float64, len(c))
	trend = make([]bool, len(c))
	if len(c) == 0 {
		return
	}
	var upperBand, lowerBand float64
	for i := range c {
		mid := (c[i].High + c[i].Low) / 2
		basicUpper := mid + m*atr[i]
		basicLower := mid - m*atr[i]
		if i == 0 {
			upperBand, lowerBand = basicUpper, basicLower
			trend[i] = c[i].Close >= basicLower
			line[i] = lowerBand
			continue
		}
		if basicUpper < upperBand || c[i-1].Close > upperBand {
			upperBand = basicUpper
		}
		if basicLower > lowerBand || c[i-1].Close < lowerBand {
			lowerBand = basicLower
		}
		prevTrend := trend[i-1]
		switch {
		case prevTrend && c[i].Close < lowerBand:
			trend[i] = false
		case !prevTrend && c[i].Close > upperBand:
			trend[i] = true
		default:
			trend[i] = prevTrend
		}
		if trend[i] {
			line[i] = lowerBand
		} else {
			line[i] = upperBand
		}
	}
	return
}
