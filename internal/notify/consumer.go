package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

var errMalformed = errors.New("malformed notification message")

// Consumer persists notifications delivered through SQS.
type Consumer struct {
	repo   Repository
	logger *zap.Logger
}

func NewConsumer(repo Repository, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{repo: repo, logger: logger}
}

// Handle processes a batch and reports failed records individually so SQS
// only redelivers those. Requires ReportBatchItemFailures on the event source.
func (c *Consumer) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := c.process(ctx, rec); err != nil {
			c.logger.Error("notification message failed",
				zap.String("message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	c.logger.Info("notification batch processed",
		zap.Int("received", len(ev.Records)), zap.Int("failed", len(resp.BatchItemFailures)))
	return resp, nil
}

func (c *Consumer) process(ctx context.Context, rec events.SQSMessage) error {
	var n Notification
	if err := json.Unmarshal([]byte(rec.Body), &n); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if n.ID == "" || n.UserID == "" {
		return fmt.Errorf("%w: id and userId are required", errMalformed)
	}
	if err := c.repo.Insert(ctx, n); err != nil {
		return fmt.Errorf("insert notification %s: %w", n.ID, err)
	}
	return nil
}
