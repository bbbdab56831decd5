package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 rounds an amount to cents. Only used when an amount is stored or shown.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FloorCents truncates an amount down to whole cents.
func FloorCents(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Floor().Div(hundred)
}

// Percent returns pct percent of amount.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
