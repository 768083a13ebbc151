// Package money implements fixed-precision decimal arithmetic for prices,
// quantities, and balances. Every monetary value in the engine flows through
// this type after ingestion; native floats are only permitted on the way in
// (wire parsing) and the way out (display).
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultScale is the rounding scale applied by Round when no scale is given.
const DefaultScale = 2

// ErrDivisionByZero is returned by Div/DivFloat when the divisor is zero.
// Add/Sub/Mul have no Overflow failure path: decimal.Decimal's coefficient
// is an arbitrary-precision big.Int, so there is no fixed-width result that
// "cannot be represented" the way there would be with int64 cents.
var ErrDivisionByZero = errors.New("money: division by zero")

// Money wraps decimal.Decimal so call sites never touch float64 directly.
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{d: decimal.Zero}

// bd is the only path by which a nil/missing input coerces to zero, per the
// spec's requirement that such coercion be explicit rather than implicit.
func bd(x interface{}) Money {
	switch v := x.(type) {
	case nil:
		return Zero
	case Money:
		return v
	case decimal.Decimal:
		return Money{d: v}
	case float64:
		return Money{d: decimal.NewFromFloat(v)}
	case int:
		return Money{d: decimal.NewFromInt(int64(v))}
	case int64:
		return Money{d: decimal.NewFromInt(v)}
	case string:
		if v == "" {
			return Zero
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Zero
		}
		return Money{d: d}
	default:
		return Zero
	}
}

// FromFloat converts a float64 to Money. This is the only sanctioned
// floating-point entry point; never convert back except for Display/Float64.
func FromFloat(f float64) Money { return Money{d: decimal.NewFromFloat(f)} }

// FromString parses textual input (e.g. a broker API field) into Money.
// A malformed or empty string coerces to zero, matching bd(x) semantics.
func FromString(s string) Money { return bd(s) }

// FromInt converts a whole number of the smallest tradable unit (e.g. rupees).
func FromInt(i int64) Money { return Money{d: decimal.NewFromInt(i)} }

// Add returns m + other.
func (m Money) Add(other Money) Money { return Money{d: m.d.Add(other.d)} }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return Money{d: m.d.Sub(other.d)} }

// Mul returns m * other (dimensionally: price*qty, or a pure scalar).
func (m Money) Mul(other Money) Money { return Money{d: m.d.Mul(other.d)} }

// MulFloat multiplies by a bare scalar such as an allocation fraction.
func (m Money) MulFloat(f float64) Money { return Money{d: m.d.Mul(decimal.NewFromFloat(f))} }

// MulInt multiplies by an integer scalar such as a lot count.
func (m Money) MulInt(n int) Money { return Money{d: m.d.Mul(decimal.NewFromInt(int64(n)))} }

// Div returns m / other. Returns ErrDivisionByZero if other is zero.
func (m Money) Div(other Money) (Money, error) {
	if other.IsZero() {
		return Zero, ErrDivisionByZero
	}
	return Money{d: m.d.Div(other.d)}, nil
}

// DivFloat divides by a bare scalar.
func (m Money) DivFloat(f float64) (Money, error) {
	if f == 0 {
		return Zero, ErrDivisionByZero
	}
	return Money{d: m.d.Div(decimal.NewFromFloat(f))}, nil
}

// Neg returns -m.
func (m Money) Neg() Money { return Money{d: m.d.Neg()} }

// Abs returns |m|.
func (m Money) Abs() Money { return Money{d: m.d.Abs()} }

// Cmp compares m to other: -1, 0, or 1.
func (m Money) Cmp(other Money) int { return m.d.Cmp(other.d) }

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) bool { return m.d.GreaterThan(other.d) }

// GreaterThanOrEqual reports whether m >= other.
func (m Money) GreaterThanOrEqual(other Money) bool { return m.d.GreaterThanOrEqual(other.d) }

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool { return m.d.LessThan(other.d) }

// LessThanOrEqual reports whether m <= other.
func (m Money) LessThanOrEqual(other Money) bool { return m.d.LessThanOrEqual(other.d) }

// Equal reports whether m == other.
func (m Money) Equal(other Money) bool { return m.d.Equal(other.d) }

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool { return m.d.IsZero() }

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool { return m.d.IsPositive() }

// Max returns the greater of m and other.
func (m Money) Max(other Money) Money {
	if m.GreaterThan(other) {
		return m
	}
	return other
}

// Min returns the lesser of m and other.
func (m Money) Min(other Money) Money {
	if m.LessThan(other) {
		return m
	}
	return other
}

// Round rounds to the given number of decimal places.
func (m Money) Round(scale int32) Money { return Money{d: m.d.Round(scale)} }

// Float64 returns the nearest float64 representation, for display only.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String formats the value with DefaultScale decimal places, currency-agnostic.
func (m Money) String() string { return m.d.StringFixed(DefaultScale) }

// MarshalJSON stores Money as a plain decimal string for store round-tripping.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", m.d.String())), nil
}

// UnmarshalJSON parses a decimal string back into Money.
func (m *Money) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		s = string(b[1 : len(b)-1])
	} else {
		s = string(b)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("money: unmarshal %q: %w", s, err)
	}
	m.d = d
	return nil
}
