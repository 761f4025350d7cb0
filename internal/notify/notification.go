package notify

import (
	"context"
	"errors"
	"time"
)

// Type classifies a notification.
type Type string

const (
	TypeOrderPlaced   Type = "order_placed"
	TypeOrderRefunded Type = "order_refunded"
)

// ErrNotFound is returned when marking a notification the user does not have.
var ErrNotFound = errors.New("notification not found")

// Notification is a fire-and-forget notice addressed to one user.
type Notification struct {
	ID        string    `json:"id" dynamodbav:"notification_id"`
	UserID    string    `json:"userId" dynamodbav:"user_id"`
	Type      Type      `json:"type" dynamodbav:"type"`
	Message   string    `json:"message" dynamodbav:"message"`
	OrderID   string    `json:"orderId,omitempty" dynamodbav:"order_id,omitempty"`
	Read      bool      `json:"read" dynamodbav:"read"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// Repository stores notifications per user.
type Repository interface {
	// Insert is idempotent on ID so redelivered messages do not duplicate.
	Insert(ctx context.Context, n Notification) error
	// ListByUser returns the user's notifications newest first.
	ListByUser(ctx context.Context, userID string) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// Sink delivers a notification somewhere it will eventually be stored.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}
