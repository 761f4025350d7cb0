package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/storefront-orderflow/internal/logging"
)

var (
	// ErrStockConflict is returned by repositories when a product's stock changed
	// between the ledger read and the conditional write.
	ErrStockConflict = errors.New("inventory: stock changed concurrently")
	// ErrInvalidLine is returned for lines with no product or a non-positive quantity.
	ErrInvalidLine = errors.New("inventory: invalid line")
)

// Line is the part of an order line the ledger needs.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Adjustment is a conditional stock write: set Stock to New if it still equals Expected.
type Adjustment struct {
	ProductID string `json:"productId"`
	Expected  int    `json:"expected"`
	New       int    `json:"new"`
	// Requested is the signed change asked for; it differs from New-Expected when clamped.
	Requested int `json:"requested"`
}

// Clamped reports whether the decrement was floored at zero.
func (a Adjustment) Clamped() bool {
	return a.New-a.Expected != a.Requested
}

// Decrement removes qty from stock, never going below zero.
func Decrement(stock, qty int) int {
	if qty >= stock {
		return 0
	}
	return stock - qty
}

// Increment restores qty to stock with no upper bound.
func Increment(stock, qty int) int {
	return stock + qty
}

// Ledger computes the stock effects of orders against the current catalog.
// It never writes: callers persist the returned adjustments atomically with the order.
type Ledger struct {
	products catalog.Reader
	logger   *zap.Logger
}

func NewLedger(products catalog.Reader, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{products: products, logger: logger}
}

// OrderCreated returns the decrements for a newly placed order.
// Products missing from the catalog are skipped.
func (l *Ledger) OrderCreated(ctx context.Context, orderID string, lines []Line) ([]Adjustment, error) {
	return l.plan(ctx, orderID, lines, -1)
}

// OrderReversed returns the increments undoing OrderCreated for a refunded or cancelled order.
func (l *Ledger) OrderReversed(ctx context.Context, orderID string, lines []Line) ([]Adjustment, error) {
	return l.plan(ctx, orderID, lines, 1)
}

func (l *Ledger) plan(ctx context.Context, orderID string, lines []Line, sign int) ([]Adjustment, error) {
	qty, err := aggregate(lines)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Adjustment, 0, len(ids))
	for _, id := range ids {
		p, err := l.products.Get(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				logging.FromContextOr(ctx, l.logger).Warn("stock adjustment skipped: product missing",
					zap.String("order_id", orderID), zap.String("product_id", id))
				continue
			}
			return nil, fmt.Errorf("load product %s: %w", id, err)
		}

		adj := Adjustment{ProductID: id, Expected: p.Stock, Requested: sign * qty[id]}
		if sign < 0 {
			adj.New = Decrement(p.Stock, qty[id])
			if adj.Clamped() {
				logging.FromContextOr(ctx, l.logger).Warn("stock clamped at zero",
					zap.String("order_id", orderID), zap.String("product_id", id),
					zap.Int("stock", p.Stock), zap.Int("quantity", qty[id]))
			}
		} else {
			adj.New = Increment(p.Stock, qty[id])
		}
		out = append(out, adj)
	}
	return out, nil
}

// aggregate sums quantities per product; one product may appear on several lines
// with different variants.
func aggregate(lines []Line) (map[string]int, error) {
	qty := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity < 1 {
			return nil, fmt.Errorf("%w: product %q quantity %d", ErrInvalidLine, line.ProductID, line.Quantity)
		}
		qty[line.ProductID] += line.Quantity
	}
	return qty, nil
}

// Apply writes adjustments into a stock table keyed by product id, failing with
// ErrStockConflict if any expected value no longer matches. Nothing is written on failure.
// In-memory repositories use it to apply a batch under their own lock.
func Apply(stock map[string]int, adjustments []Adjustment) error {
	for _, a := range adjustments {
		cur, ok := stock[a.ProductID]
		if !ok || cur != a.Expected {
			return fmt.Errorf("%w: product %s expected %d", ErrStockConflict, a.ProductID, a.Expected)
		}
	}
	for _, a := range adjustments {
		stock[a.ProductID] = a.New
	}
	return nil
}
