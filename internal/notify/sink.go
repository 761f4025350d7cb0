package notify

import (
	"context"
	"fmt"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
)

// QueueSink publishes notifications to SQS for the worker to persist.
type QueueSink struct {
	publisher *aws.Publisher
}

func NewQueueSink(p *aws.Publisher) *QueueSink {
	return &QueueSink{publisher: p}
}

func (s *QueueSink) Deliver(ctx context.Context, n Notification) error {
	_, err := s.publisher.Publish(ctx, aws.Envelope{
		Payload: n,
		Attributes: map[string]string{
			"notification_type": string(n.Type),
			"user_id":           n.UserID,
			"order_id":          n.OrderID,
		},
		GroupID: n.UserID,
		DedupID: n.ID,
	})
	if err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return nil
}

// RepositorySink writes notifications straight to storage. Used when no queue is configured.
type RepositorySink struct {
	repo Repository
}

func NewRepositorySink(repo Repository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Deliver(ctx context.Context, n Notification) error {
	if err := s.repo.Insert(ctx, n); err != nil {
		return fmt.Errorf("store notification %s: %w", n.ID, err)
	}
	return nil
}
