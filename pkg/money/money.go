// Package money holds the decimal conventions shared by billing code.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for currency amounts.
const Scale int32 = 2

// PercentScale is the number of fractional digits kept for percentages.
const PercentScale int32 = 4

var (
	Zero    = decimal.Zero
	Hundred = decimal.NewFromInt(100)
)

// Round rounds an amount to currency precision (half away from zero).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// HasCurrencyPrecision reports whether d carries no more than Scale fractional digits.
func HasCurrencyPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}

// HasPercentPrecision reports whether d carries no more than PercentScale fractional digits.
func HasPercentPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(PercentScale))
}

// ValidAmount reports whether d is a non-negative amount at currency precision.
func ValidAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && HasCurrencyPrecision(d)
}

// ValidPercent reports whether d is within [0, 100].
func ValidPercent(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(Hundred) && HasPercentPrecision(d)
}

// PercentOf returns amount * pct / 100 rounded to currency precision.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(Hundred))
}

// Format renders an amount with thousands separators, e.g. 1,234,567.80.
func Format(d decimal.Decimal) string {
	s := Round(d).StringFixed(Scale)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// FromNull returns the value of an optional decimal, or zero when unset.
func FromNull(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return Zero
	}
	return d.Decimal
}

// Null wraps a pointer as an optional decimal.
func Null(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
