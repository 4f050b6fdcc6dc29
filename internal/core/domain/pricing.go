package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountedUnitPrice returns the displayed unit price after applying a
// percentage discount, rounded half-up to the nearest whole currency
// unit. The percent is clamped to [0, 100] even though stored values
// should already be in range.
func DiscountedUnitPrice(price int64, discountPercent int) int64 {
	pct := ClampDiscount(discountPercent)
	discounted := decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(int64(100 - pct))).
		Div(hundred)
	return discounted.Round(0).IntPart()
}

// ItemSubtotal is the discounted unit price times the line quantity.
func ItemSubtotal(it CartItem) int64 {
	return DiscountedUnitPrice(it.UnitPrice, it.DiscountPercent) * int64(it.Quantity)
}
