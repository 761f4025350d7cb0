package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/logging"
	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
)

const defaultStockRetries = 3

var (
	errRepositoryMissing = errors.New("order store: repository is required")
	errPlannerMissing    = errors.New("order store: stock planner is required")
)

// StoreDeps bundles collaborators for the order store.
type StoreDeps struct {
	Orders   Repository
	Stock    StockPlanner
	Notifier Notifier
	Metrics  Recorder
	Clock    func() time.Time
	IDGen    func() string
	// EntryIDGen names status history entries.
	EntryIDGen func() string
	Logger     *zap.Logger
	// StockRetries bounds re-planning after a concurrent stock change.
	StockRetries int
}

// Store is the only writer of order records. Create, Update, Refund,
// AddHistoryNote and Delete are serialized per order id.
type Store struct {
	repo     Repository
	stock    StockPlanner
	notifier Notifier
	metrics  Recorder
	clock    func() time.Time
	newID    func() string
	newEntry func() string
	logger   *zap.Logger
	retries  int
	locks    *keyedMutex
}

func NewStore(deps StoreDeps) (*Store, error) {
	if deps.Orders == nil {
		return nil, errRepositoryMissing
	}
	if deps.Stock == nil {
		return nil, errPlannerMissing
	}
	s := &Store{
		repo:     deps.Orders,
		stock:    deps.Stock,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		newID:    deps.IDGen,
		newEntry: deps.EntryIDGen,
		logger:   deps.Logger,
		retries:  deps.StockRetries,
		locks:    newKeyedMutex(),
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	s.clock = func() time.Time { return clock().UTC() }
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	if s.newEntry == nil {
		s.newEntry = func() string { return ulid.Make().String() }
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.retries <= 0 {
		s.retries = defaultStockRetries
	}
	return s, nil
}

// Create persists a new order. Steps run in a fixed order: validate, plan stock,
// write order and stock together, notify, record metrics. Stock tracking and
// notification failures are logged and never fail placement.
func (s *Store) Create(ctx context.Context, o Order) (Order, error) {
	if err := validateNew(o); err != nil {
		return Order{}, err
	}
	o = o.Clone()
	if strings.TrimSpace(o.ID) == "" {
		o.ID = s.newID()
	}
	unlock := s.locks.Lock(o.ID)
	defer unlock()

	now := s.clock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = StatusPending
	}
	if len(o.StatusHistory) == 0 {
		o.StatusHistory = []HistoryEntry{{ID: s.newEntry(), Status: o.Status, Timestamp: now, Note: noteOrderPlaced}}
	}
	o.Discount = pricing.ClampDiscount(o.Discount, o.Subtotal)
	o.Total = pricing.Total(o.Subtotal, o.ShippingCost, o.Tax, o.Discount)
	o.StockRestored = false
	o.Version = 1

	logger := s.log(ctx).With(zap.String("order_id", o.ID), zap.String("user_id", o.UserID))

	err := s.withStockRetry(ctx, func() error {
		adj, err := s.stock.OrderCreated(ctx, o.ID, o.InventoryLines())
		if err != nil {
			logger.Warn("stock planning failed; placing order without stock effects", zap.Error(err))
			o.StockApplied, o.StockTaken = false, nil
			return s.repo.Insert(ctx, o, nil)
		}
		o.StockApplied, o.StockTaken = true, stockTaken(adj)
		return s.repo.Insert(ctx, o, adj)
	})
	if errors.Is(err, inventory.ErrStockConflict) {
		logger.Warn("stock kept changing; placing order without stock effects", zap.Int("attempts", s.retries))
		o.StockApplied, o.StockTaken = false, nil
		err = s.repo.Insert(ctx, o, nil)
	}
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	if !o.StockApplied {
		s.metrics.StockSkipped(ctx, o.ID)
	}
	if err := s.notifier.OrderPlaced(ctx, o); err != nil {
		logger.Warn("order placed notification failed", zap.Error(err))
	}
	s.metrics.OrderPlaced(ctx, o)
	logger.Info("order created", zap.String("total", o.Total.StringFixed(2)), zap.Bool("stock_applied", o.StockApplied))
	return o, nil
}

// withStockRetry reruns fn while the repository reports a stock race.
func (s *Store) withStockRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < s.retries; attempt++ {
		if err = fn(); !errors.Is(err, inventory.ErrStockConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

func validateNew(o Order) error {
	if strings.TrimSpace(o.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	for i, it := range o.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return fmt.Errorf("%w: item %d has no product", ErrInvalidInput, i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("%w: item %d quantity %d", ErrInvalidInput, i, it.Quantity)
		}
	}
	if o.Status != "" && !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, o.Status)
	}
	for _, amount := range [...]struct {
		name string
		neg  bool
	}{
		{"subtotal", o.Subtotal.IsNegative()},
		{"shipping", o.ShippingCost.IsNegative()},
		{"tax", o.Tax.IsNegative()},
		{"discount", o.Discount.IsNegative()},
	} {
		if amount.neg {
			return fmt.Errorf("%w: %s is negative", ErrInvalidInput, amount.name)
		}
	}
	return nil
}

// FindAll lists orders newest first. A non-empty userID restricts the result
// to that user's orders.
func (s *Store) FindAll(ctx context.Context, userID string) ([]Order, error) {
	userID = strings.TrimSpace(userID)
	list, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Order, 0, len(list))
	for _, o := range list {
		if userID != "" && o.UserID != userID {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindOne returns the order and true, or false when no order has that id.
func (s *Store) FindOne(ctx context.Context, id string) (Order, bool, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, false, nil
		}
		return Order{}, false, fmt.Errorf("get order: %w", err)
	}
	return o, true, nil
}

// Update applies a patch. A status change appends exactly one history entry;
// inventory is never touched.
func (s *Store) Update(ctx context.Context, id string, p Patch) (Order, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var prev Status
	o, err := s.mutate(ctx, id, func(o *Order, now time.Time) ([]inventory.Adjustment, error) {
		prev = o.Status
		return nil, s.applyPatch(o, p, now)
	})
	if err != nil {
		return Order{}, err
	}
	if prev.Terminal() && o.Status != prev {
		s.log(ctx).Warn("order reopened from terminal status",
			zap.String("order_id", o.ID),
			zap.String("from", string(prev)),
			zap.String("to", string(o.Status)))
	}
	return o, nil
}

func (s *Store) applyPatch(o *Order, p Patch, now time.Time) error {
	if p.UserID != nil && *p.UserID != o.UserID {
		return fmt.Errorf("%w: userId", ErrImmutableField)
	}
	if p.Items != nil {
		return fmt.Errorf("%w: items", ErrImmutableField)
	}
	for _, f := range p.Fulfillment {
		if f.Index < 0 || f.Index >= len(o.Items) {
			return fmt.Errorf("%w: no line at index %d", ErrInvalidInput, f.Index)
		}
	}
	if p.Status != nil {
		next, err := ParseStatus(string(*p.Status))
		if err != nil {
			return err
		}
		o.transition(next, p.Note, s.newEntry(), now)
	}
	if p.Carrier != nil {
		o.Carrier = strings.TrimSpace(*p.Carrier)
	}
	if p.TrackingNumber != nil {
		o.TrackingNumber = strings.TrimSpace(*p.TrackingNumber)
	}
	if p.PaymentMethod != nil {
		o.PaymentMethod = strings.TrimSpace(*p.PaymentMethod)
	}
	for _, f := range p.Fulfillment {
		item := &o.Items[f.Index]
		ff := Fulfillment{}
		if item.Fulfillment != nil {
			ff = *item.Fulfillment
		}
		if f.DeliveredKey != nil {
			ff.DeliveredKey = *f.DeliveredKey
		}
		if f.DeliveredContent != nil {
			ff.DeliveredContent = *f.DeliveredContent
		}
		if f.ProofImageURL != nil {
			ff.ProofImageURL = strings.TrimSpace(*f.ProofImageURL)
		}
		ff.UpdatedAt = now
		item.Fulfillment = &ff
	}
	return nil
}

// Refund cancels the order and credits its stock back exactly once. An order
// already cancelled through Update still gets its stock back; once nothing is
// held, refunding a cancelled order fails with ErrAlreadyCancelled.
func (s *Store) Refund(ctx context.Context, id string) (Order, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	o, err := s.mutate(ctx, id, func(o *Order, now time.Time) ([]inventory.Adjustment, error) {
		held := o.StockApplied && !o.StockRestored
		if o.Status == StatusCancelled && !held {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyCancelled, id)
		}
		entryID := s.newEntry()
		if !o.transition(StatusCancelled, noteRefundProcessed, entryID, now) {
			o.appendHistory(HistoryEntry{ID: entryID, Status: StatusCancelled, Timestamp: now, Note: noteRefundProcessed})
		}
		if !held {
			return nil, nil
		}
		adj, err := s.stock.OrderReversed(ctx, o.ID, o.reversalLines())
		if err != nil {
			return nil, fmt.Errorf("plan stock reversal: %w", err)
		}
		o.StockRestored = true
		return adj, nil
	})
	if err != nil {
		return Order{}, err
	}

	logger := s.log(ctx).With(zap.String("order_id", o.ID), zap.String("user_id", o.UserID))
	if err := s.notifier.OrderRefunded(ctx, o); err != nil {
		logger.Warn("order refunded notification failed", zap.Error(err))
	}
	s.metrics.OrderRefunded(ctx, o)
	logger.Info("order refunded", zap.Bool("stock_restored", o.StockRestored))
	return o, nil
}

// AddHistoryNote appends an annotation without changing status.
func (s *Store) AddHistoryNote(ctx context.Context, id string, in NoteInput) (Order, error) {
	if strings.TrimSpace(in.Note) == "" && strings.TrimSpace(in.Location) == "" {
		return Order{}, fmt.Errorf("%w: note or location is required", ErrInvalidInput)
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.mutate(ctx, id, func(o *Order, now time.Time) ([]inventory.Adjustment, error) {
		o.annotate(in, s.newEntry(), now)
		return nil, nil
	})
}

// Delete purges an order without touching stock. An unshipped order whose
// stock is still held, cancelled ones included, must be refunded first.
func (s *Store) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	o, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if o.holdsStock() {
		return fmt.Errorf("%w: order %s still holds stock, refund it first", ErrConflict, id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	s.log(ctx).Info("order deleted", zap.String("order_id", id))
	return nil
}

// mutate reads the order, lets fn change it and saves it conditionally on the
// version read. A concurrent order write or stock race reruns fn on a fresh
// read, so decisions are never made on a stale copy. Errors from fn end the loop.
func (s *Store) mutate(ctx context.Context, id string, fn func(o *Order, now time.Time) ([]inventory.Adjustment, error)) (Order, error) {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		o, err := s.load(ctx, id)
		if err != nil {
			return Order{}, err
		}
		now := s.clock()
		adj, err := fn(&o, now)
		if err != nil {
			return Order{}, err
		}
		o.UpdatedAt = now
		o.Version++

		lastErr = s.repo.Save(ctx, o, adj)
		if lastErr == nil {
			return o, nil
		}
		if !errors.Is(lastErr, ErrStale) && !errors.Is(lastErr, inventory.ErrStockConflict) {
			return Order{}, fmt.Errorf("save order: %w", lastErr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Order{}, ctxErr
		}
	}
	return Order{}, fmt.Errorf("%w: order %s kept changing, retry: %v", ErrConflict, id, lastErr)
}

func (s *Store) log(ctx context.Context) *zap.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

func (s *Store) load(ctx context.Context, id string) (Order, error) {
	if strings.TrimSpace(id) == "" {
		return Order{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}
