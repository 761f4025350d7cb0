package coupons

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalid is the parent of every reason a code cannot be applied.
	ErrInvalid = errors.New("coupon: invalid")
	// ErrNotFound indicates no coupon matches the code.
	ErrNotFound = fmt.Errorf("%w: not found", ErrInvalid)
	// ErrNotStarted indicates the activation window has not opened yet.
	ErrNotStarted = fmt.Errorf("%w: not started", ErrInvalid)
	// ErrExpired indicates the coupon end date has passed.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalid)
	// ErrMinimumNotMet indicates the cart subtotal is below the coupon minimum.
	// It is deliberately not an ErrInvalid: the coupon exists and is active.
	ErrMinimumNotMet = errors.New("coupon: minimum order not met")
	// ErrCodeConflict indicates another coupon already uses the code.
	ErrCodeConflict = errors.New("coupon: code already exists")
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a promotional code. Codes are stored upper-cased and compared case-insensitively.
type Coupon struct {
	Code      string          `json:"code"`
	Type      DiscountType    `json:"type"`
	Value     decimal.Decimal `json:"value"`
	MinOrder  decimal.Decimal `json:"minOrder"`
	StartsAt  *time.Time      `json:"startsAt,omitempty"`
	EndsAt    *time.Time      `json:"endsAt,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NormalizeCode upper-cases and trims a code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ActiveAt checks the activation window. A coupon is still active at exactly EndsAt.
func (c Coupon) ActiveAt(now time.Time) error {
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return fmt.Errorf("%w: %s starts %s", ErrNotStarted, c.Code, c.StartsAt.UTC().Format(time.RFC3339))
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return fmt.Errorf("%w: %s ended %s", ErrExpired, c.Code, c.EndsAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// Discount returns the amount taken off subtotal, clamped to [0, subtotal].
func (c Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.Type {
	case DiscountPercentage:
		d = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		d = c.Value
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		return subtotal
	}
	return d
}

// Validate looks the code up in catalog and checks the activation window.
// Minimum-order is not checked here; see CheckMinimum.
func Validate(code string, catalog []Coupon, now time.Time) (Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Coupon{}, ErrNotFound
	}
	for _, c := range catalog {
		if !strings.EqualFold(strings.TrimSpace(c.Code), code) {
			continue
		}
		if err := c.ActiveAt(now); err != nil {
			return Coupon{}, err
		}
		return c, nil
	}
	return Coupon{}, fmt.Errorf("%w: %s", ErrNotFound, NormalizeCode(code))
}

// CheckMinimum reports ErrMinimumNotMet when subtotal is below the coupon's minimum order.
func CheckMinimum(c Coupon, subtotal decimal.Decimal) error {
	if subtotal.LessThan(c.MinOrder) {
		return fmt.Errorf("%w: %s requires %s, subtotal %s", ErrMinimumNotMet, c.Code, c.MinOrder.StringFixed(2), subtotal.StringFixed(2))
	}
	return nil
}
