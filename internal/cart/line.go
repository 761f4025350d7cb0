package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
)

var (
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
	// ErrMissingCustomField is returned when a product's required field has no value.
	ErrMissingCustomField = errors.New("cart: missing required custom field")
	// ErrInvalidVariant is returned for unknown variant groups or options.
	ErrInvalidVariant = errors.New("cart: invalid variant selection")
)

// Line is one purchasable configuration of a product. Price, shipping and tax
// fields are a snapshot of the catalog at the time the line was built.
type Line struct {
	ProductID    string            `json:"productId"`
	Title        string            `json:"title"`
	Price        decimal.Decimal   `json:"price"`
	Quantity     int               `json:"quantity"`
	Digital      bool              `json:"digital"`
	ShippingCost *decimal.Decimal  `json:"shippingCost,omitempty"`
	TaxRate      *decimal.Decimal  `json:"taxRate,omitempty"`
	Variants     map[string]string `json:"variants,omitempty"`
	CustomFields map[string]string `json:"customFields,omitempty"`
}

type identity struct {
	ProductID    string      `json:"p"`
	Variants     [][2]string `json:"v"`
	CustomFields [][2]string `json:"f"`
}

// IdentityKey is the canonical serialization of product id, variant choices and
// custom field values. Lines with equal keys represent the same configuration.
func (l Line) IdentityKey() string {
	b, _ := json.Marshal(identity{
		ProductID:    l.ProductID,
		Variants:     sortedPairs(l.Variants),
		CustomFields: sortedPairs(l.CustomFields),
	})
	return string(b)
}

func sortedPairs(m map[string]string) [][2]string {
	out := make([][2]string, 0, len(m))
	for k, v := range m {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// LineTotal returns price * quantity.
func (l Line) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Clone returns a deep copy so snapshots never share maps with the caller.
func (l Line) Clone() Line {
	out := l
	out.Variants = cloneMap(l.Variants)
	out.CustomFields = cloneMap(l.CustomFields)
	if l.ShippingCost != nil {
		v := *l.ShippingCost
		out.ShippingCost = &v
	}
	if l.TaxRate != nil {
		v := *l.TaxRate
		out.TaxRate = &v
	}
	return out
}

func cloneMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// FromProduct snapshots the product's pricing into a new line.
func FromProduct(p catalog.Product, quantity int, variants, customFields map[string]string) Line {
	line := Line{
		ProductID:    p.ID,
		Title:        p.Title,
		Price:        p.Price,
		Quantity:     quantity,
		Digital:      p.Digital,
		Variants:     cloneMap(trimValues(variants)),
		CustomFields: cloneMap(trimValues(customFields)),
	}
	if p.ShippingCost != nil {
		v := *p.ShippingCost
		line.ShippingCost = &v
	}
	if p.TaxRate != nil {
		v := *p.TaxRate
		line.TaxRate = &v
	}
	return line
}

func trimValues(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// Validate checks the line against the product it references: quantity, variant
// choices and required custom fields.
func Validate(l Line, p catalog.Product) error {
	if l.Quantity < 1 {
		return fmt.Errorf("%w: %s has quantity %d", ErrInvalidQuantity, l.ProductID, l.Quantity)
	}
	for name, choice := range l.Variants {
		v, ok := p.Variant(name)
		if !ok {
			return fmt.Errorf("%w: %s has no variant %q", ErrInvalidVariant, p.ID, name)
		}
		if !contains(v.Options, choice) {
			return fmt.Errorf("%w: %q is not an option of %s", ErrInvalidVariant, choice, name)
		}
	}
	for _, v := range p.Variants {
		if _, ok := l.Variants[v.Name]; !ok {
			return fmt.Errorf("%w: %s requires a %s selection", ErrInvalidVariant, p.ID, v.Name)
		}
	}
	for _, field := range p.RequiredFields {
		if strings.TrimSpace(l.CustomFields[field]) == "" {
			return fmt.Errorf("%w: %s requires %q", ErrMissingCustomField, p.ID, field)
		}
	}
	return nil
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
