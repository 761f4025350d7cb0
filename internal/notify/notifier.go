package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/imrishuroy/storefront-orderflow/internal/logging"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
)

// NotifierDeps bundles collaborators for the order notifier.
type NotifierDeps struct {
	Sink Sink
	// OperatorUserID receives new-order notices.
	OperatorUserID string
	Clock          func() time.Time
	IDGen          func() string
	Logger         *zap.Logger
}

// OrderNotifier turns order events into notifications.
type OrderNotifier struct {
	sink     Sink
	operator string
	clock    func() time.Time
	newID    func() string
	logger   *zap.Logger
}

var _ orders.Notifier = (*OrderNotifier)(nil)

func NewOrderNotifier(deps NotifierDeps) *OrderNotifier {
	n := &OrderNotifier{
		sink:     deps.Sink,
		operator: deps.OperatorUserID,
		clock:    deps.Clock,
		newID:    deps.IDGen,
		logger:   deps.Logger,
	}
	if n.operator == "" {
		n.operator = "admin"
	}
	if n.clock == nil {
		n.clock = time.Now
	}
	if n.newID == nil {
		n.newID = func() string { return ulid.Make().String() }
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	return n
}

func (n *OrderNotifier) OrderPlaced(ctx context.Context, o orders.Order) error {
	return n.deliver(ctx, Notification{
		UserID:  n.operator,
		Type:    TypeOrderPlaced,
		OrderID: o.ID,
		Message: fmt.Sprintf("New order %s placed by %s for %s", o.ID, o.UserID, o.Total.StringFixed(2)),
	})
}

func (n *OrderNotifier) OrderRefunded(ctx context.Context, o orders.Order) error {
	return n.deliver(ctx, Notification{
		UserID:  o.UserID,
		Type:    TypeOrderRefunded,
		OrderID: o.ID,
		Message: fmt.Sprintf("Your order %s has been refunded", o.ID),
	})
}

func (n *OrderNotifier) deliver(ctx context.Context, msg Notification) error {
	if n.sink == nil {
		return nil
	}
	msg.ID = n.newID()
	msg.CreatedAt = n.clock().UTC()
	if err := n.sink.Deliver(ctx, msg); err != nil {
		return err
	}
	logging.FromContextOr(ctx, n.logger).Debug("notification emitted",
		zap.String("notification_id", msg.ID),
		zap.String("type", string(msg.Type)),
		zap.String("order_id", msg.OrderID))
	return nil
}
