// Package money holds the fixed-point arithmetic rules shared by the
// compliance fee, adjustment and penalty computations. All dollar and tonne
// math flows through decimal.Decimal; float64 is never used for amounts.
package money

import "github.com/shopspring/decimal"

// RoundDollars rounds a dollar amount half-up to two decimal places.
// Amounts in this system are non-negative at the point of rounding, so
// decimal's round-half-away-from-zero is exactly half-up here.
func RoundDollars(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FloorTonnes truncates a tonnage down to whole tonnes. Earned credits are
// only ever issued in whole-tonne units.
func FloorTonnes(d decimal.Decimal) decimal.Decimal {
	return d.Floor()
}

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// FromString parses a decimal amount, panicking on malformed literals. Only
// for constants in code and tests; runtime input goes through decimal.NewFromString.
func FromString(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
