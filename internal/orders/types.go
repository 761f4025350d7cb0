package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
)

// Address is a postal address captured at checkout.
type Address struct {
	Name       string `json:"name" dynamodbav:"name"`
	Line1      string `json:"line1" dynamodbav:"line1"`
	Line2      string `json:"line2,omitempty" dynamodbav:"line2,omitempty"`
	City       string `json:"city" dynamodbav:"city"`
	Region     string `json:"region,omitempty" dynamodbav:"region,omitempty"`
	PostalCode string `json:"postalCode" dynamodbav:"postal_code"`
	Country    string `json:"country" dynamodbav:"country"`
}

func (a *Address) IsZero() bool {
	return a == nil || (a.Line1 == "" && a.City == "" && a.PostalCode == "")
}

// Fulfillment is admin-managed delivery data for a line, mostly for digital goods.
type Fulfillment struct {
	DeliveredKey     string    `json:"deliveredKey,omitempty"`
	DeliveredContent string    `json:"deliveredContent,omitempty"`
	ProofImageURL    string    `json:"proofImageUrl,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// LineItem is the purchase-time snapshot of a cart line.
type LineItem struct {
	cart.Line
	Fulfillment *Fulfillment `json:"fulfillment,omitempty"`
}

// Order is the central aggregate. Amounts may be zero on legacy records.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Items           []LineItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	CouponCode      string          `json:"couponCode,omitempty"`
	Status          Status          `json:"status"`
	StatusHistory   []HistoryEntry  `json:"statusHistory"`
	ShippingAddress *Address        `json:"shippingAddress,omitempty"`
	BillingAddress  *Address        `json:"billingAddress,omitempty"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	Carrier         string          `json:"carrier,omitempty"`
	TrackingNumber  string          `json:"trackingNumber,omitempty"`
	// StockApplied is set when creation decremented stock.
	StockApplied bool `json:"stockApplied"`
	// StockRestored is set once a refund has credited the stock back.
	StockRestored bool `json:"stockRestored"`
	// StockTaken holds the units creation actually removed per product, after
	// clamping. Nil on orders placed before it was recorded.
	StockTaken []inventory.Line `json:"stockTaken,omitempty"`
	// Version increments on every write; repositories reject stale saves.
	Version int `json:"version"`
}

// InventoryLines projects the line items for the ledger.
func (o Order) InventoryLines() []inventory.Line {
	out := make([]inventory.Line, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

// holdsStock reports whether units removed at creation are still out of stock
// for an order that has not shipped. Shipped and delivered orders consumed theirs.
func (o Order) holdsStock() bool {
	if !o.StockApplied || o.StockRestored {
		return false
	}
	return o.Status == StatusPending || o.Status == StatusProcessing || o.Status == StatusCancelled
}

// reversalLines is what a refund credits back: the recorded units when known,
// otherwise the line quantities.
func (o Order) reversalLines() []inventory.Line {
	if o.StockTaken == nil {
		return o.InventoryLines()
	}
	out := make([]inventory.Line, 0, len(o.StockTaken))
	for _, l := range o.StockTaken {
		if l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}

// stockTaken converts applied decrements into removed units per product.
func stockTaken(adjustments []inventory.Adjustment) []inventory.Line {
	out := make([]inventory.Line, 0, len(adjustments))
	for _, a := range adjustments {
		out = append(out, inventory.Line{ProductID: a.ProductID, Quantity: a.Expected - a.New})
	}
	return out
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	out := o
	out.Items = make([]LineItem, len(o.Items))
	for i, it := range o.Items {
		out.Items[i] = LineItem{Line: it.Line.Clone()}
		if it.Fulfillment != nil {
			f := *it.Fulfillment
			out.Items[i].Fulfillment = &f
		}
	}
	out.StatusHistory = append([]HistoryEntry(nil), o.StatusHistory...)
	if o.StockTaken != nil {
		out.StockTaken = append(make([]inventory.Line, 0, len(o.StockTaken)), o.StockTaken...)
	}
	if o.ShippingAddress != nil {
		a := *o.ShippingAddress
		out.ShippingAddress = &a
	}
	if o.BillingAddress != nil {
		a := *o.BillingAddress
		out.BillingAddress = &a
	}
	return out
}

// FulfillmentPatch updates delivery data of the line at Index. Nil fields are left alone.
type FulfillmentPatch struct {
	Index            int
	DeliveredKey     *string
	DeliveredContent *string
	ProofImageURL    *string
}

// Patch is a partial update of an order. Only non-nil fields are applied.
// UserID and Items exist so an attempted change can be rejected explicitly.
type Patch struct {
	Status         *Status
	Note           string
	Carrier        *string
	TrackingNumber *string
	PaymentMethod  *string
	Fulfillment    []FulfillmentPatch

	UserID *string
	Items  []LineItem
}
