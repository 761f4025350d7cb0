package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Envelope is one queued message. GroupID and DedupID only apply to FIFO queues.
type Envelope struct {
	Payload    any
	Attributes map[string]string
	GroupID    string
	DedupID    string
}

// Publisher sends JSON envelopes to a single SQS queue.
type Publisher struct {
	client   SQSAPI
	queueURL string
	fifo     bool
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// Publish marshals the payload and enqueues it. Returns the SQS message id.
func (p *Publisher) Publish(ctx context.Context, env Envelope) (string, error) {
	body, err := json.Marshal(env.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          String(p.queueURL),
		MessageBody:       String(string(body)),
		MessageAttributes: stringAttributes(env.Attributes),
	}
	if p.fifo {
		if env.GroupID == "" {
			return "", fmt.Errorf("fifo queue requires a message group id")
		}
		input.MessageGroupId = String(env.GroupID)
		if env.DedupID != "" {
			input.MessageDeduplicationId = String(env.DedupID)
		}
	}

	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return "", fmt.Errorf("send message to %s: %w", p.queueURL, err)
	}
	if out == nil || out.MessageId == nil {
		return "", nil
	}
	return *out.MessageId, nil
}

func stringAttributes(in map[string]string) map[string]sqstypes.MessageAttributeValue {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]sqstypes.MessageAttributeValue, len(in))
	for k, v := range in {
		// SQS rejects empty attribute values
		if v == "" {
			continue
		}
		out[k] = sqstypes.MessageAttributeValue{DataType: String("String"), StringValue: String(v)}
	}
	return out
}
