package orders

import (
	"context"

	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
)

// Repository persists orders. Insert and Save apply stock adjustments in the
// same atomic write as the order record.
type Repository interface {
	// Insert returns ErrConflict if the id exists and inventory.ErrStockConflict
	// if any adjustment's expected stock no longer matches.
	Insert(ctx context.Context, o Order, adjustments []inventory.Adjustment) error
	// Save replaces an existing order whose stored Version is o.Version-1.
	// It returns ErrNotFound if the order is gone and ErrStale if another
	// writer saved it first. Nothing is written on failure.
	Save(ctx context.Context, o Order, adjustments []inventory.Adjustment) error
	Get(ctx context.Context, id string) (Order, error)
	// List returns every order when userID is empty.
	List(ctx context.Context, userID string) ([]Order, error)
	Delete(ctx context.Context, id string) error
}

// StockPlanner computes stock adjustments for orders.
type StockPlanner interface {
	OrderCreated(ctx context.Context, orderID string, lines []inventory.Line) ([]inventory.Adjustment, error)
	OrderReversed(ctx context.Context, orderID string, lines []inventory.Line) ([]inventory.Adjustment, error)
}

// Notifier receives fire-and-forget order events.
type Notifier interface {
	OrderPlaced(ctx context.Context, o Order) error
	OrderRefunded(ctx context.Context, o Order) error
}

// Recorder receives order metrics. Implementations handle their own errors.
type Recorder interface {
	OrderPlaced(ctx context.Context, o Order)
	OrderRefunded(ctx context.Context, o Order)
	StockSkipped(ctx context.Context, orderID string)
}

type nopNotifier struct{}

func (nopNotifier) OrderPlaced(context.Context, Order) error   { return nil }
func (nopNotifier) OrderRefunded(context.Context, Order) error { return nil }

type nopRecorder struct{}

func (nopRecorder) OrderPlaced(context.Context, Order)   {}
func (nopRecorder) OrderRefunded(context.Context, Order) {}
func (nopRecorder) StockSkipped(context.Context, string) {}
