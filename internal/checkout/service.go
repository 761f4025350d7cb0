// Package checkout prices carts against the live catalog and turns them into orders.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
	"github.com/imrishuroy/storefront-orderflow/internal/logging"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
)

var (
	// ErrInvalidRequest covers malformed carts: no lines, no user, missing address.
	ErrInvalidRequest = errors.New("checkout: invalid request")

	errCatalogMissing = errors.New("checkout service: catalog is required")
	errCouponsMissing = errors.New("checkout service: coupon validator is required")
	errOrdersMissing  = errors.New("checkout service: order store is required")
)

// CouponValidator resolves a code to an active coupon.
type CouponValidator interface {
	Validate(ctx context.Context, code string) (coupons.Coupon, error)
}

// OrderCreator persists a new order and applies its stock effects.
type OrderCreator interface {
	Create(ctx context.Context, o orders.Order) (orders.Order, error)
}

type LineRequest struct {
	ProductID    string
	Quantity     int
	Variants     map[string]string
	CustomFields map[string]string
}

type Request struct {
	// OrderID is optional; the order store generates one when empty.
	OrderID         string
	UserID          string
	Lines           []LineRequest
	CouponCode      string
	ShippingAddress *orders.Address
	BillingAddress  *orders.Address
	PaymentMethod   string
}

// CouponStatus explains why a submitted code did not discount a quote.
type CouponStatus string

const (
	CouponNotSubmitted  CouponStatus = ""
	CouponApplied       CouponStatus = "applied"
	CouponInvalid       CouponStatus = "invalid"
	CouponMinimumNotMet CouponStatus = "minimum_not_met"
)

// Quote is a priced cart. A rejected coupon never fails a quote; it is reported
// through CouponStatus and CouponError instead.
type Quote struct {
	pricing.Quote
	Lines        []cart.Line  `json:"lines"`
	CouponStatus CouponStatus `json:"couponStatus,omitempty"`
	CouponError  string       `json:"couponError,omitempty"`
}

type ServiceDeps struct {
	Catalog  catalog.Reader
	Coupons  CouponValidator
	Orders   OrderCreator
	Settings pricing.Settings
	Clock    func() time.Time
	Logger   *zap.Logger
}

type Service struct {
	catalog  catalog.Reader
	coupons  CouponValidator
	orders   OrderCreator
	settings pricing.Settings
	clock    func() time.Time
	logger   *zap.Logger
}

func NewService(deps ServiceDeps) (*Service, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errCatalogMissing
	case deps.Coupons == nil:
		return nil, errCouponsMissing
	case deps.Orders == nil:
		return nil, errOrdersMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:  deps.Catalog,
		coupons:  deps.Coupons,
		orders:   deps.Orders,
		settings: deps.Settings,
		clock:    func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// Quote prices the cart. Catalog and line errors fail the quote; coupon
// rejections do not.
func (s *Service) Quote(ctx context.Context, req Request) (Quote, error) {
	c, err := s.buildLines(ctx, req.Lines)
	if err != nil {
		return Quote{}, err
	}
	lines := c.Lines
	q := Quote{Lines: lines}
	coupon, err := s.resolveCoupon(ctx, req.CouponCode, lines)
	switch {
	case err == nil && coupon != nil:
		q.CouponStatus = CouponApplied
	case errors.Is(err, coupons.ErrMinimumNotMet):
		q.CouponStatus = CouponMinimumNotMet
		q.CouponError = err.Error()
	case errors.Is(err, coupons.ErrInvalid):
		q.CouponStatus = CouponInvalid
		q.CouponError = err.Error()
	case err != nil:
		return Quote{}, err
	}
	q.Quote = pricing.ComputeQuote(lines, s.settings, coupon)
	return q, nil
}

// PlaceOrder re-prices the cart server-side and creates the order. Unlike Quote,
// a submitted coupon that cannot be applied fails the checkout.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (orders.Order, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return orders.Order{}, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	c, err := s.buildLines(ctx, req.Lines)
	if err != nil {
		return orders.Order{}, err
	}
	lines := c.Lines
	if !c.AllDigital() && (req.ShippingAddress == nil || req.ShippingAddress.IsZero()) {
		return orders.Order{}, fmt.Errorf("%w: shipping address is required for physical items", ErrInvalidRequest)
	}
	coupon, err := s.resolveCoupon(ctx, req.CouponCode, lines)
	if err != nil {
		return orders.Order{}, err
	}
	q := pricing.ComputeQuote(lines, s.settings, coupon)

	items := make([]orders.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, orders.LineItem{Line: l})
	}
	created, err := s.orders.Create(ctx, orders.Order{
		ID:              req.OrderID,
		UserID:          req.UserID,
		Items:           items,
		Subtotal:        q.Subtotal,
		ShippingCost:    q.ShippingCost,
		Tax:             q.Tax,
		Discount:        q.Discount,
		Total:           q.Total,
		CouponCode:      q.CouponCode,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
	})
	if err != nil {
		return orders.Order{}, err
	}
	logging.FromContextOr(ctx, s.logger).Info("checkout completed",
		zap.String("order_id", created.ID),
		zap.String("user_id", created.UserID),
		zap.String("total", created.Total.StringFixed(2)),
		zap.String("coupon", created.CouponCode),
	)
	return created, nil
}

// buildLines snapshots catalog pricing into lines, validates each against its
// product and merges lines that describe the same configuration.
func (s *Service) buildLines(ctx context.Context, reqs []LineRequest) (cart.Cart, error) {
	var c cart.Cart
	if len(reqs) == 0 {
		return c, fmt.Errorf("%w: cart is empty", ErrInvalidRequest)
	}
	now := s.clock()
	products := make(map[string]catalog.Product, len(reqs))
	for _, r := range reqs {
		p, ok := products[r.ProductID]
		if !ok {
			var err error
			p, err = s.catalog.Get(ctx, r.ProductID)
			if err != nil {
				return c, fmt.Errorf("product %s: %w", r.ProductID, err)
			}
			if err := p.AvailableAt(now); err != nil {
				return c, err
			}
			products[r.ProductID] = p
		}
		line := cart.FromProduct(p, r.Quantity, r.Variants, r.CustomFields)
		if err := cart.Validate(line, p); err != nil {
			return c, err
		}
		if err := c.Add(line); err != nil {
			return c, err
		}
	}
	return c, nil
}

// resolveCoupon returns nil without error when no code was submitted.
func (s *Service) resolveCoupon(ctx context.Context, code string, lines []cart.Line) (*coupons.Coupon, error) {
	if coupons.NormalizeCode(code) == "" {
		return nil, nil
	}
	c, err := s.coupons.Validate(ctx, code)
	if err != nil {
		return nil, err
	}
	subtotal := pricing.ComputeQuote(lines, s.settings, nil).Subtotal
	if err := coupons.CheckMinimum(c, subtotal); err != nil {
		return nil, err
	}
	return &c, nil
}
