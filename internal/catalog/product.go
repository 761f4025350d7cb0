package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates no product exists for the id.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrUnavailable indicates the product is outside its availability window.
	ErrUnavailable = errors.New("catalog: product unavailable")
)

// Variant is a named option group such as "size" with its allowed options.
type Variant struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

// Product is a catalog entry. Stock is only mutated through the inventory ledger.
type Product struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Price          decimal.Decimal  `json:"price"`
	ShippingCost   *decimal.Decimal `json:"shippingCost,omitempty"`
	TaxRate        *decimal.Decimal `json:"taxRate,omitempty"`
	Stock          int              `json:"stock"`
	Digital        bool             `json:"digital"`
	Variants       []Variant        `json:"variants,omitempty"`
	RequiredFields []string         `json:"requiredFields,omitempty"`
	LaunchAt       *time.Time       `json:"launchAt,omitempty"`
	EndAt          *time.Time       `json:"endAt,omitempty"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// AvailableAt reports whether the product can be sold at now.
func (p Product) AvailableAt(now time.Time) error {
	if p.LaunchAt != nil && now.Before(*p.LaunchAt) {
		return fmt.Errorf("%w: %s launches at %s", ErrUnavailable, p.ID, p.LaunchAt.UTC().Format(time.RFC3339))
	}
	if p.EndAt != nil && now.After(*p.EndAt) {
		return fmt.Errorf("%w: %s ended at %s", ErrUnavailable, p.ID, p.EndAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// Variant returns the option group with the given name.
func (p Product) Variant(name string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Reader is the read side of the catalog used by pricing and the inventory ledger.
type Reader interface {
	Get(ctx context.Context, id string) (Product, error)
}

// Repository persists products. The catalog service owns product CRUD.
type Repository interface {
	Reader
	List(ctx context.Context) ([]Product, error)
	Put(ctx context.Context, p Product) error
}
