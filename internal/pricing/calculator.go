// Package pricing turns cart lines, store settings and an optional coupon into a quote.
// Everything here is pure: no I/O, no clocks, no shared state.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
)

// displayPlaces is the rounding applied to every quote amount.
const displayPlaces = 2

// Settings are the store-wide defaults used when a line carries no override.
type Settings struct {
	DefaultShippingCost decimal.Decimal `json:"defaultShippingCost"`
	DefaultTaxRate      decimal.Decimal `json:"defaultTaxRate"`
}

// Quote is the priced result of a cart.
type Quote struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	Tax          decimal.Decimal `json:"tax"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	CouponCode   string          `json:"couponCode,omitempty"`
}

// ComputeQuote prices lines. Shipping is charged per unit on physical lines only,
// so an all-digital cart ships free. Tax is levied on the undiscounted line amounts.
// The coupon discount is clamped to the subtotal and the total never drops below zero.
func ComputeQuote(lines []cart.Line, settings Settings, coupon *coupons.Coupon) Quote {
	subtotal := decimal.Zero
	shipping := decimal.Zero
	tax := decimal.Zero

	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		amount := l.LineTotal()
		subtotal = subtotal.Add(amount)

		if !l.Digital {
			perUnit := settings.DefaultShippingCost
			if l.ShippingCost != nil {
				perUnit = *l.ShippingCost
			}
			shipping = shipping.Add(perUnit.Mul(qty))
		}

		rate := settings.DefaultTaxRate
		if l.TaxRate != nil {
			rate = *l.TaxRate
		}
		tax = tax.Add(amount.Mul(rate))
	}

	q := Quote{
		Subtotal:     subtotal.Round(displayPlaces),
		ShippingCost: shipping.Round(displayPlaces),
		Tax:          tax.Round(displayPlaces),
		Discount:     decimal.Zero,
	}
	if coupon != nil {
		q.Discount = coupon.Discount(q.Subtotal).Round(displayPlaces)
		q.CouponCode = coupon.Code
	}
	q.Total = Total(q.Subtotal, q.ShippingCost, q.Tax, q.Discount)
	return q
}

// Total applies the order total rule: discount clamped to [0, subtotal], result floored at 0.
func Total(subtotal, shipping, tax, discount decimal.Decimal) decimal.Decimal {
	discount = ClampDiscount(discount, subtotal)
	total := subtotal.Add(shipping).Add(tax).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// ClampDiscount bounds a discount to [0, subtotal].
func ClampDiscount(discount, subtotal decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		if subtotal.IsNegative() {
			return decimal.Zero
		}
		return subtotal
	}
	return discount
}
