package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: String("m-1")}, nil
}

func TestPublish_MarshalsPayloadAndSkipsEmptyAttributes(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.local/queue")

	id, err := p.Publish(context.Background(), Envelope{
		Payload:    map[string]string{"id": "n1"},
		Attributes: map[string]string{"type": "order_placed", "correlation_id": ""},
		GroupID:    "alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "m-1" {
		t.Fatalf("message id mismatch: %q", id)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected one send, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	var body map[string]string
	if err := json.Unmarshal([]byte(*in.MessageBody), &body); err != nil || body["id"] != "n1" {
		t.Fatalf("body mismatch: %s (%v)", *in.MessageBody, err)
	}
	if _, ok := in.MessageAttributes["correlation_id"]; ok {
		t.Fatalf("empty attribute should be dropped")
	}
	if got := *in.MessageAttributes["type"].StringValue; got != "order_placed" {
		t.Fatalf("attribute mismatch: %s", got)
	}
	if in.MessageGroupId != nil {
		t.Fatalf("standard queue must not carry a group id")
	}
}

func TestPublish_FifoRequiresGroup(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.local/orders.fifo")

	if _, err := p.Publish(context.Background(), Envelope{Payload: 1}); err == nil {
		t.Fatalf("expected error without group id")
	}
	if len(fake.inputs) != 0 {
		t.Fatalf("nothing should be sent")
	}

	if _, err := p.Publish(context.Background(), Envelope{Payload: 1, GroupID: "g", DedupID: "d"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := fake.inputs[0]
	if *in.MessageGroupId != "g" || *in.MessageDeduplicationId != "d" {
		t.Fatalf("fifo ids not set: %v %v", in.MessageGroupId, in.MessageDeduplicationId)
	}
}

func TestPublish_WrapsError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPublisher(&fakeSQS{err: boom}, "q")
	if _, err := p.Publish(context.Background(), Envelope{Payload: struct{}{}}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestPublish_UnmarshalablePayload(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "q")
	if _, err := p.Publish(context.Background(), Envelope{Payload: make(chan int)}); err == nil {
		t.Fatalf("expected marshal error")
	}
	if len(fake.inputs) != 0 {
		t.Fatalf("nothing should be sent")
	}
}
