package pricing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestComputeQuote_ReferenceScenario(t *testing.T) {
	lines := []cart.Line{{ProductID: "p1", Price: dec("50"), Quantity: 2}}
	settings := Settings{DefaultShippingCost: dec("5"), DefaultTaxRate: dec("0.1")}
	coupon := &coupons.Coupon{Code: "TWENTY", Type: coupons.DiscountFixed, Value: dec("20"), MinOrder: dec("50")}

	q := ComputeQuote(lines, settings, coupon)

	assert.True(t, q.Subtotal.Equal(dec("100")), "subtotal %s", q.Subtotal)
	assert.True(t, q.ShippingCost.Equal(dec("10")), "shipping %s", q.ShippingCost)
	assert.True(t, q.Tax.Equal(dec("10")), "tax %s", q.Tax)
	assert.True(t, q.Discount.Equal(dec("20")), "discount %s", q.Discount)
	assert.True(t, q.Total.Equal(dec("100")), "total %s", q.Total)
	assert.Equal(t, "TWENTY", q.CouponCode)
}

func TestComputeQuote_Overrides(t *testing.T) {
	lines := []cart.Line{
		{ProductID: "a", Price: dec("10"), Quantity: 3, ShippingCost: decPtr("1.5"), TaxRate: decPtr("0")},
		{ProductID: "b", Price: dec("20"), Quantity: 1},
	}
	settings := Settings{DefaultShippingCost: dec("4"), DefaultTaxRate: dec("0.2")}

	q := ComputeQuote(lines, settings, nil)

	assert.True(t, q.Subtotal.Equal(dec("50")))
	assert.True(t, q.ShippingCost.Equal(dec("8.5")), "shipping %s", q.ShippingCost)
	assert.True(t, q.Tax.Equal(dec("4")), "tax %s", q.Tax)
	assert.True(t, q.Discount.IsZero())
	assert.True(t, q.Total.Equal(dec("62.5")))
}

func TestComputeQuote_DigitalShipsFree(t *testing.T) {
	settings := Settings{DefaultShippingCost: dec("5"), DefaultTaxRate: dec("0")}
	mixed := cart.Cart{Lines: []cart.Line{
		{ProductID: "ebook", Price: dec("9"), Quantity: 1, Digital: true},
		{ProductID: "poster", Price: dec("15"), Quantity: 2},
	}}

	q := ComputeQuote(mixed.Lines, settings, nil)
	assert.True(t, q.ShippingCost.Equal(dec("10")), "only physical lines ship: %s", q.ShippingCost)

	mixed.Lines = mixed.Lines[:1]
	q = ComputeQuote(mixed.Lines, settings, nil)
	assert.True(t, q.ShippingCost.IsZero(), "all-digital cart must not ship: %s", q.ShippingCost)
}

func TestComputeQuote_PercentCouponOver100Clamped(t *testing.T) {
	lines := []cart.Line{{ProductID: "p", Price: dec("30"), Quantity: 1}}
	coupon := &coupons.Coupon{Code: "ALL", Type: coupons.DiscountPercentage, Value: dec("250")}
	q := ComputeQuote(lines, Settings{DefaultShippingCost: dec("3")}, coupon)

	assert.True(t, q.Discount.Equal(dec("30")))
	assert.True(t, q.Total.Equal(dec("3")))
}

func TestComputeQuote_RoundsForDisplay(t *testing.T) {
	lines := []cart.Line{{ProductID: "p", Price: dec("9.99"), Quantity: 3}}
	coupon := &coupons.Coupon{Code: "THIRD", Type: coupons.DiscountPercentage, Value: dec("33.3333")}
	q := ComputeQuote(lines, Settings{DefaultTaxRate: dec("0.0825")}, coupon)

	assert.Equal(t, "29.97", q.Subtotal.StringFixed(2))
	assert.Equal(t, "2.47", q.Tax.StringFixed(2))
	assert.Equal(t, "9.99", q.Discount.StringFixed(2))
	assert.Equal(t, "22.45", q.Total.StringFixed(2))
}

func TestComputeQuote_EmptyCart(t *testing.T) {
	q := ComputeQuote(nil, Settings{DefaultShippingCost: dec("5"), DefaultTaxRate: dec("0.1")}, nil)
	assert.True(t, q.Total.IsZero())
	assert.True(t, q.ShippingCost.IsZero())
}

func randomCart(r *rand.Rand) []cart.Line {
	n := r.Intn(5) + 1
	lines := make([]cart.Line, n)
	for i := range lines {
		l := cart.Line{
			ProductID: string(rune('a' + i)),
			Price:     decimal.New(int64(r.Intn(100000)), -2),
			Quantity:  r.Intn(9) + 1,
			Digital:   r.Intn(3) == 0,
		}
		if r.Intn(2) == 0 {
			s := decimal.New(int64(r.Intn(2000)), -2)
			l.ShippingCost = &s
		}
		if r.Intn(2) == 0 {
			rate := decimal.New(int64(r.Intn(30)), -2)
			l.TaxRate = &rate
		}
		lines[i] = l
	}
	return lines
}

func randomCoupon(r *rand.Rand) *coupons.Coupon {
	switch r.Intn(3) {
	case 0:
		return nil
	case 1:
		return &coupons.Coupon{Code: "P", Type: coupons.DiscountPercentage, Value: decimal.NewFromInt(int64(r.Intn(300)))}
	default:
		return &coupons.Coupon{Code: "F", Type: coupons.DiscountFixed, Value: decimal.New(int64(r.Intn(500000)), -2)}
	}
}

func TestComputeQuote_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		lines := randomCart(r)
		coupon := randomCoupon(r)
		settings := Settings{
			DefaultShippingCost: decimal.New(int64(r.Intn(1500)), -2),
			DefaultTaxRate:      decimal.New(int64(r.Intn(25)), -2),
		}

		q := ComputeQuote(lines, settings, coupon)

		if q.Total.IsNegative() {
			t.Fatalf("case %d: negative total %s", i, q.Total)
		}
		if q.Discount.GreaterThan(q.Subtotal) {
			t.Fatalf("case %d: discount %s exceeds subtotal %s", i, q.Discount, q.Subtotal)
		}

		allDigital := true
		for _, l := range lines {
			allDigital = allDigital && l.Digital
		}
		if allDigital && !q.ShippingCost.IsZero() {
			t.Fatalf("case %d: digital cart charged shipping %s", i, q.ShippingCost)
		}

		again := ComputeQuote(lines, settings, coupon)
		if !again.Total.Equal(q.Total) || !again.Tax.Equal(q.Tax) || !again.Discount.Equal(q.Discount) ||
			!again.ShippingCost.Equal(q.ShippingCost) || !again.Subtotal.Equal(q.Subtotal) {
			t.Fatalf("case %d: quote not idempotent: %+v vs %+v", i, q, again)
		}
	}
}

func TestTotal_FloorsAtZero(t *testing.T) {
	got := Total(dec("10"), dec("0"), dec("0"), dec("15"))
	assert.True(t, got.Equal(dec("0")))
	assert.True(t, ClampDiscount(dec("-3"), dec("10")).IsZero())
}
