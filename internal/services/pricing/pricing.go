// Package pricing computes subtotal, discount, the two tax components and the
// payable total for an order or a bill split. Every function here is pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/config"
	"restaurant-pos/internal/models"
)

// TaxRates holds the two tax components in percent of the discounted subtotal
type TaxRates struct {
	A decimal.Decimal
	B decimal.Decimal
}

// DefaultRates is 5% split into two equal components
var DefaultRates = TaxRates{
	A: decimal.RequireFromString("2.5"),
	B: decimal.RequireFromString("2.5"),
}

// RatesFromConfig reads the tax components from configuration
func RatesFromConfig(cfg config.PricingConfig) TaxRates {
	return TaxRates{
		A: decimal.NewFromFloat(cfg.TaxAPercent),
		B: decimal.NewFromFloat(cfg.TaxBPercent),
	}
}

// Breakdown is the unrounded result of pricing
type Breakdown struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	TaxA     decimal.Decimal
	TaxB     decimal.Decimal
}

// Taxable is the subtotal after discount
func (b Breakdown) Taxable() decimal.Decimal {
	return b.Subtotal.Sub(b.Discount)
}

// Total is subtotal - discount + taxA + taxB
func (b Breakdown) Total() decimal.Decimal {
	return b.Taxable().Add(b.TaxA).Add(b.TaxB)
}

// Rounded rounds each component to cents. Total is the sum of the rounded
// components so the stored invariant holds exactly.
func (b Breakdown) Rounded() models.Totals {
	sub := models.Round2(b.Subtotal)
	disc := models.Round2(b.Discount)
	taxA := models.Round2(b.TaxA)
	taxB := models.Round2(b.TaxB)
	return models.Totals{
		Subtotal: sub,
		Discount: disc,
		Taxable:  sub.Sub(disc),
		TaxA:     taxA,
		TaxB:     taxB,
		Total:    sub.Sub(disc).Add(taxA).Add(taxB),
	}
}

// Subtotal sums the line totals of non-voided items
func Subtotal(items []models.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for i := range items {
		if items[i].Voided {
			continue
		}
		sum = sum.Add(items[i].LineTotal())
	}
	return sum
}

// DiscountAmount resolves a discount against a subtotal. Percentages apply to
// the subtotal; fixed coupon amounts are capped at it.
func DiscountAmount(d *models.Discount, subtotal decimal.Decimal) decimal.Decimal {
	if d == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	if d.Percent.IsPositive() {
		amount = models.Percent(subtotal, d.Percent)
	} else {
		amount = d.FixedAmount
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return models.MinDecimal(amount, subtotal)
}

// Price prices a list of items with an optional discount
func Price(items []models.LineItem, discount *models.Discount, rates TaxRates) Breakdown {
	subtotal := Subtotal(items)
	return PriceAmount(subtotal, DiscountAmount(discount, subtotal), rates)
}

// PriceAmount prices an already-known subtotal and discount. Splits use it
// after prorating the order discount onto their own subtotal.
func PriceAmount(subtotal, discount decimal.Decimal, rates TaxRates) Breakdown {
	discount = models.MinDecimal(models.MaxDecimal(discount, decimal.Zero), subtotal)
	taxable := subtotal.Sub(discount)
	return Breakdown{
		Subtotal: subtotal,
		Discount: discount,
		TaxA:     models.Percent(taxable, rates.A),
		TaxB:     models.Percent(taxable, rates.B),
	}
}

// LoyaltyCap returns how many points may be redeemed against total:
// min(balance, floor(total * redeemRate)).
func LoyaltyCap(balance int64, total, redeemRate decimal.Decimal) int64 {
	if balance <= 0 || !total.IsPositive() || !redeemRate.IsPositive() {
		return 0
	}
	limit := total.Mul(redeemRate).Floor().IntPart()
	if balance < limit {
		return balance
	}
	return limit
}

// LoyaltyAmount converts points into currency, never exceeding total.
func LoyaltyAmount(points int64, pointValue, total decimal.Decimal) decimal.Decimal {
	if points <= 0 || !pointValue.IsPositive() || !total.IsPositive() {
		return decimal.Zero
	}
	amount := decimal.NewFromInt(points).Mul(pointValue)
	return models.Round2(models.MinDecimal(amount, total))
}
