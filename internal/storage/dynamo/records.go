package dynamo

import (
	"time"

	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
)

// sortableTime keeps created_at lexicographically ordered for the user index.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// orderRecord is the item stored in the orders table.
type orderRecord struct {
	OrderID         string          `dynamodbav:"order_id"`   // PK
	UserID          string          `dynamodbav:"user_id"`    // GSI PK
	CreatedAt       string          `dynamodbav:"created_at"` // GSI SK
	UpdatedAt       time.Time       `dynamodbav:"updated_at"`
	Items           []lineRecord    `dynamodbav:"items"`
	Subtotal        amount          `dynamodbav:"subtotal"`
	ShippingCost    amount          `dynamodbav:"shipping_cost"`
	Tax             amount          `dynamodbav:"tax"`
	Discount        amount          `dynamodbav:"discount"`
	Total           amount          `dynamodbav:"total"`
	CouponCode      string          `dynamodbav:"coupon_code,omitempty"`
	Status          string          `dynamodbav:"status"`
	StatusHistory   []historyRecord `dynamodbav:"status_history"`
	ShippingAddress *orders.Address `dynamodbav:"shipping_address,omitempty"`
	BillingAddress  *orders.Address `dynamodbav:"billing_address,omitempty"`
	PaymentMethod   string          `dynamodbav:"payment_method,omitempty"`
	Carrier         string          `dynamodbav:"carrier,omitempty"`
	TrackingNumber  string          `dynamodbav:"tracking_number,omitempty"`
	StockApplied    bool            `dynamodbav:"stock_applied"`
	StockRestored   bool            `dynamodbav:"stock_restored"`
	// nil on orders written before units taken were recorded
	StockTaken *[]stockLineRecord `dynamodbav:"stock_taken,omitempty"`
	Version    int                `dynamodbav:"version,omitempty"`
}

type stockLineRecord struct {
	ProductID string `dynamodbav:"product_id"`
	Quantity  int    `dynamodbav:"quantity"`
}

type lineRecord struct {
	ProductID    string             `dynamodbav:"product_id"`
	Title        string             `dynamodbav:"title"`
	Price        amount             `dynamodbav:"price"`
	Quantity     int                `dynamodbav:"quantity"`
	Digital      bool               `dynamodbav:"digital"`
	ShippingCost *amount            `dynamodbav:"shipping_cost,omitempty"`
	TaxRate      *amount            `dynamodbav:"tax_rate,omitempty"`
	Variants     map[string]string  `dynamodbav:"variants,omitempty"`
	CustomFields map[string]string  `dynamodbav:"custom_fields,omitempty"`
	Fulfillment  *fulfillmentRecord `dynamodbav:"fulfillment,omitempty"`
}

type fulfillmentRecord struct {
	DeliveredKey     string    `dynamodbav:"delivered_key,omitempty"`
	DeliveredContent string    `dynamodbav:"delivered_content,omitempty"`
	ProofImageURL    string    `dynamodbav:"proof_image_url,omitempty"`
	UpdatedAt        time.Time `dynamodbav:"updated_at"`
}

type historyRecord struct {
	ID               string    `dynamodbav:"id"`
	Status           string    `dynamodbav:"status"`
	Timestamp        time.Time `dynamodbav:"timestamp"`
	Note             string    `dynamodbav:"note,omitempty"`
	IsTrackingUpdate bool      `dynamodbav:"is_tracking_update,omitempty"`
	Location         string    `dynamodbav:"location,omitempty"`
}

func toOrderRecord(o orders.Order) orderRecord {
	rec := orderRecord{
		OrderID:         o.ID,
		UserID:          o.UserID,
		CreatedAt:       o.CreatedAt.UTC().Format(sortableTime),
		UpdatedAt:       o.UpdatedAt.UTC(),
		Subtotal:        newAmount(o.Subtotal),
		ShippingCost:    newAmount(o.ShippingCost),
		Tax:             newAmount(o.Tax),
		Discount:        newAmount(o.Discount),
		Total:           newAmount(o.Total),
		CouponCode:      o.CouponCode,
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		PaymentMethod:   o.PaymentMethod,
		Carrier:         o.Carrier,
		TrackingNumber:  o.TrackingNumber,
		StockApplied:    o.StockApplied,
		StockRestored:   o.StockRestored,
		Version:         o.Version,
	}
	if o.StockTaken != nil {
		taken := make([]stockLineRecord, 0, len(o.StockTaken))
		for _, l := range o.StockTaken {
			taken = append(taken, stockLineRecord{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		rec.StockTaken = &taken
	}
	rec.Items = make([]lineRecord, 0, len(o.Items))
	for _, it := range o.Items {
		lr := lineRecord{
			ProductID:    it.ProductID,
			Title:        it.Title,
			Price:        newAmount(it.Price),
			Quantity:     it.Quantity,
			Digital:      it.Digital,
			ShippingCost: optionalAmount(it.ShippingCost),
			TaxRate:      optionalAmount(it.TaxRate),
			Variants:     it.Variants,
			CustomFields: it.CustomFields,
		}
		if f := it.Fulfillment; f != nil {
			lr.Fulfillment = &fulfillmentRecord{
				DeliveredKey:     f.DeliveredKey,
				DeliveredContent: f.DeliveredContent,
				ProofImageURL:    f.ProofImageURL,
				UpdatedAt:        f.UpdatedAt,
			}
		}
		rec.Items = append(rec.Items, lr)
	}
	rec.StatusHistory = make([]historyRecord, 0, len(o.StatusHistory))
	for _, h := range o.StatusHistory {
		rec.StatusHistory = append(rec.StatusHistory, historyRecord{
			ID:               h.ID,
			Status:           string(h.Status),
			Timestamp:        h.Timestamp,
			Note:             h.Note,
			IsTrackingUpdate: h.IsTrackingUpdate,
			Location:         h.Location,
		})
	}
	return rec
}

func (rec orderRecord) toOrder() orders.Order {
	created, _ := time.Parse(sortableTime, rec.CreatedAt)
	if created.IsZero() {
		created, _ = time.Parse(time.RFC3339Nano, rec.CreatedAt)
	}
	o := orders.Order{
		ID:              rec.OrderID,
		UserID:          rec.UserID,
		CreatedAt:       created,
		UpdatedAt:       rec.UpdatedAt,
		Subtotal:        rec.Subtotal.Decimal(),
		ShippingCost:    rec.ShippingCost.Decimal(),
		Tax:             rec.Tax.Decimal(),
		Discount:        rec.Discount.Decimal(),
		Total:           rec.Total.Decimal(),
		CouponCode:      rec.CouponCode,
		Status:          orders.Status(rec.Status),
		ShippingAddress: rec.ShippingAddress,
		BillingAddress:  rec.BillingAddress,
		PaymentMethod:   rec.PaymentMethod,
		Carrier:         rec.Carrier,
		TrackingNumber:  rec.TrackingNumber,
		StockApplied:    rec.StockApplied,
		StockRestored:   rec.StockRestored,
		Version:         rec.Version,
	}
	if rec.StockTaken != nil {
		o.StockTaken = make([]inventory.Line, 0, len(*rec.StockTaken))
		for _, l := range *rec.StockTaken {
			o.StockTaken = append(o.StockTaken, inventory.Line{ProductID: l.ProductID, Quantity: l.Quantity})
		}
	}
	o.Items = make([]orders.LineItem, 0, len(rec.Items))
	for _, lr := range rec.Items {
		it := orders.LineItem{Line: cart.Line{
			ProductID:    lr.ProductID,
			Title:        lr.Title,
			Price:        lr.Price.Decimal(),
			Quantity:     lr.Quantity,
			Digital:      lr.Digital,
			ShippingCost: lr.ShippingCost.decimalPtr(),
			TaxRate:      lr.TaxRate.decimalPtr(),
			Variants:     lr.Variants,
			CustomFields: lr.CustomFields,
		}}
		if f := lr.Fulfillment; f != nil {
			it.Fulfillment = &orders.Fulfillment{
				DeliveredKey:     f.DeliveredKey,
				DeliveredContent: f.DeliveredContent,
				ProofImageURL:    f.ProofImageURL,
				UpdatedAt:        f.UpdatedAt,
			}
		}
		o.Items = append(o.Items, it)
	}
	o.StatusHistory = make([]orders.HistoryEntry, 0, len(rec.StatusHistory))
	for _, h := range rec.StatusHistory {
		o.StatusHistory = append(o.StatusHistory, orders.HistoryEntry{
			ID:               h.ID,
			Status:           orders.Status(h.Status),
			Timestamp:        h.Timestamp,
			Note:             h.Note,
			IsTrackingUpdate: h.IsTrackingUpdate,
			Location:         h.Location,
		})
	}
	return o
}

// productRecord is the item stored in the products table.
type productRecord struct {
	ProductID      string          `dynamodbav:"product_id"` // PK
	Title          string          `dynamodbav:"title"`
	Price          amount          `dynamodbav:"price"`
	ShippingCost   *amount         `dynamodbav:"shipping_cost,omitempty"`
	TaxRate        *amount         `dynamodbav:"tax_rate,omitempty"`
	Stock          int             `dynamodbav:"stock"`
	Digital        bool            `dynamodbav:"digital"`
	Variants       []variantRecord `dynamodbav:"variants,omitempty"`
	RequiredFields []string        `dynamodbav:"required_fields,omitempty"`
	LaunchAt       *time.Time      `dynamodbav:"launch_at,omitempty"`
	EndAt          *time.Time      `dynamodbav:"end_at,omitempty"`
	UpdatedAt      time.Time       `dynamodbav:"updated_at"`
}

type variantRecord struct {
	Name    string   `dynamodbav:"name"`
	Options []string `dynamodbav:"options"`
}

func toProductRecord(p catalog.Product) productRecord {
	rec := productRecord{
		ProductID:      p.ID,
		Title:          p.Title,
		Price:          newAmount(p.Price),
		ShippingCost:   optionalAmount(p.ShippingCost),
		TaxRate:        optionalAmount(p.TaxRate),
		Stock:          p.Stock,
		Digital:        p.Digital,
		RequiredFields: p.RequiredFields,
		LaunchAt:       p.LaunchAt,
		EndAt:          p.EndAt,
		UpdatedAt:      p.UpdatedAt,
	}
	for _, v := range p.Variants {
		rec.Variants = append(rec.Variants, variantRecord{Name: v.Name, Options: v.Options})
	}
	return rec
}

func (rec productRecord) toProduct() catalog.Product {
	p := catalog.Product{
		ID:             rec.ProductID,
		Title:          rec.Title,
		Price:          rec.Price.Decimal(),
		ShippingCost:   rec.ShippingCost.decimalPtr(),
		TaxRate:        rec.TaxRate.decimalPtr(),
		Stock:          rec.Stock,
		Digital:        rec.Digital,
		RequiredFields: rec.RequiredFields,
		LaunchAt:       rec.LaunchAt,
		EndAt:          rec.EndAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	for _, v := range rec.Variants {
		p.Variants = append(p.Variants, catalog.Variant{Name: v.Name, Options: v.Options})
	}
	return p
}

// couponRecord is the item stored in the coupons table.
type couponRecord struct {
	Code      string     `dynamodbav:"code"` // PK, upper-cased
	Type      string     `dynamodbav:"type"`
	Value     amount     `dynamodbav:"value"`
	MinOrder  amount     `dynamodbav:"min_order"`
	StartsAt  *time.Time `dynamodbav:"starts_at,omitempty"`
	EndsAt    *time.Time `dynamodbav:"ends_at,omitempty"`
	CreatedAt time.Time  `dynamodbav:"created_at"`
	UpdatedAt time.Time  `dynamodbav:"updated_at"`
}

func toCouponRecord(c coupons.Coupon) couponRecord {
	return couponRecord{
		Code:      coupons.NormalizeCode(c.Code),
		Type:      string(c.Type),
		Value:     newAmount(c.Value),
		MinOrder:  newAmount(c.MinOrder),
		StartsAt:  c.StartsAt,
		EndsAt:    c.EndsAt,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (rec couponRecord) toCoupon() coupons.Coupon {
	return coupons.Coupon{
		Code:      rec.Code,
		Type:      coupons.DiscountType(rec.Type),
		Value:     rec.Value.Decimal(),
		MinOrder:  rec.MinOrder.Decimal(),
		StartsAt:  rec.StartsAt,
		EndsAt:    rec.EndsAt,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
