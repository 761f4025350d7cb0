package validation

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// LineRequest is one cart line as submitted by the storefront.
type LineRequest struct {
	ProductID    string            `json:"productId" validate:"required,max=128"`
	Quantity     int               `json:"quantity" validate:"required,min=1,max=1000"`
	Variants     map[string]string `json:"variants,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
	CustomFields map[string]string `json:"customFields,omitempty" validate:"omitempty,dive,keys,required,endkeys"`
}

type AddressRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	Region     string `json:"region,omitempty" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,len=2"`
}

// QuoteRequest is the payload for POST /checkout/quote.
type QuoteRequest struct {
	Lines      []LineRequest `json:"lines" validate:"required,min=1,max=100,dive"`
	CouponCode string        `json:"couponCode,omitempty" validate:"max=64"`
}

// CheckoutRequest is the payload for POST /checkout/orders. Whether a shipping
// address is required depends on the catalog, so that check happens at checkout.
type CheckoutRequest struct {
	Lines           []LineRequest   `json:"lines" validate:"required,min=1,max=100,dive"`
	CouponCode      string          `json:"couponCode,omitempty" validate:"max=64"`
	ShippingAddress *AddressRequest `json:"shippingAddress,omitempty"`
	BillingAddress  *AddressRequest `json:"billingAddress,omitempty"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required,max=64"`
}

type FulfillmentRequest struct {
	Index            int     `json:"index" validate:"min=0"`
	DeliveredKey     *string `json:"deliveredKey,omitempty" validate:"omitempty,max=2000"`
	DeliveredContent *string `json:"deliveredContent,omitempty" validate:"omitempty,max=20000"`
	ProofImageURL    *string `json:"proofImageUrl,omitempty" validate:"omitempty,url"`
}

// UpdateOrderRequest is the payload for PATCH /admin/orders/:id. UserID and
// Items are accepted only so the order store can reject them as immutable.
type UpdateOrderRequest struct {
	Status         *string              `json:"status,omitempty" validate:"omitempty,order_status"`
	Note           string               `json:"note,omitempty" validate:"max=500"`
	Carrier        *string              `json:"carrier,omitempty" validate:"omitempty,max=100"`
	TrackingNumber *string              `json:"trackingNumber,omitempty" validate:"omitempty,max=100"`
	PaymentMethod  *string              `json:"paymentMethod,omitempty" validate:"omitempty,max=64"`
	Fulfillment    []FulfillmentRequest `json:"fulfillment,omitempty" validate:"omitempty,dive"`
	UserID         *string              `json:"userId,omitempty"`
	Items          json.RawMessage      `json:"items,omitempty"`
}

// NoteRequest is the payload for POST /admin/orders/:id/notes.
type NoteRequest struct {
	Note             string `json:"note" validate:"required_without=Location,max=500"`
	IsTrackingUpdate bool   `json:"isTrackingUpdate"`
	Location         string `json:"location,omitempty" validate:"max=200"`
}

// CouponRequest is the payload for coupon create and update.
type CouponRequest struct {
	Code     string          `json:"code" validate:"required,max=32,printascii"`
	Type     string          `json:"type" validate:"required,oneof=percentage fixed"`
	Value    decimal.Decimal `json:"value" validate:"gt=0"`
	MinOrder decimal.Decimal `json:"minOrder" validate:"gte=0"`
	StartsAt *time.Time      `json:"startsAt,omitempty"`
	EndsAt   *time.Time      `json:"endsAt,omitempty"`
}

type VariantRequest struct {
	Name    string   `json:"name" validate:"required,max=64"`
	Options []string `json:"options" validate:"required,min=1,dive,required"`
}

// ProductRequest is the payload for PUT /admin/products/:id.
type ProductRequest struct {
	Title          string           `json:"title" validate:"required,max=200"`
	Price          decimal.Decimal  `json:"price" validate:"gte=0"`
	ShippingCost   *decimal.Decimal `json:"shippingCost,omitempty" validate:"omitempty,gte=0"`
	TaxRate        *decimal.Decimal `json:"taxRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	Stock          int              `json:"stock" validate:"min=0"`
	Digital        bool             `json:"digital"`
	Variants       []VariantRequest `json:"variants,omitempty" validate:"omitempty,dive"`
	RequiredFields []string         `json:"requiredFields,omitempty" validate:"omitempty,dive,required"`
	LaunchAt       *time.Time       `json:"launchAt,omitempty"`
	EndAt          *time.Time       `json:"endAt,omitempty"`
}
