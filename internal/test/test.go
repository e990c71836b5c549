package test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vvatanabe/sqsredrive"
)

const (
	Region       = "us-east-1"
	AccountID    = "123456789012"
	MainQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/orders"
	DLQURL       = "https://sqs.us-east-1.amazonaws.com/123456789012/orders-dlq"
	DLQARN       = "arn:aws:sqs:us-east-1:123456789012:orders-dlq"
)

var DefaultTestDate = time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)

// NewMessage returns a snapshot whose receipt handle is "receipt-<id>".
func NewMessage(id string) sqsredrive.MessageSnapshot {
	return sqsredrive.MessageSnapshot{
		ID:            id,
		Body:          fmt.Sprintf(`{"order":%q}`, id),
		ReceiptHandle: "receipt-" + id,
		Attributes: map[string]sqsredrive.MessageAttributeValue{
			"trace": {DataType: "String", StringValue: ptr("trace-" + id)},
		},
	}
}

func NewMessages(ids ...string) []sqsredrive.MessageSnapshot {
	messages := make([]sqsredrive.MessageSnapshot, 0, len(ids))
	for _, id := range ids {
		messages = append(messages, NewMessage(id))
	}
	return messages
}

func NewQueueConfiguration(id string) *sqsredrive.QueueConfiguration {
	return &sqsredrive.QueueConfiguration{
		ID:        id,
		QueueURL:  MainQueueURL,
		QueueName: "orders",
		Region:    Region,
		Attributes: map[string]string{
			"RedrivePolicy": RedrivePolicy(DLQARN),
		},
		DLQURL:  DLQURL,
		DLQName: "orders-dlq",
		SavedAt: DefaultTestDate.Format(time.RFC3339),
	}
}

func RedrivePolicy(arn string) string {
	return fmt.Sprintf(`{"deadLetterTargetArn":%q,"maxReceiveCount":"3"}`, arn)
}

func ptr[T any](v T) *T {
	return &v
}

// Call is one gateway invocation observed by a Recording gateway.
type Call struct {
	Op            string
	QueueURL      string
	MessageBody   string
	ReceiptHandle string
	MaxMessages   int
	Attributes    map[string]sqsredrive.MessageAttributeValue
}

// Recording is a Gateway backed by an in-memory DLQ. Receives pop the DLQ in order,
// or pop Batches one per call when it is set, answering empty once it runs out.
// Sends succeed unless FailSend says otherwise, deletes succeed unless FailDelete says otherwise.
// Every call is appended to Calls.
type Recording struct {
	mu         sync.Mutex
	DLQ        []sqsredrive.MessageSnapshot
	Batches    [][]sqsredrive.MessageSnapshot
	FailSend   func(body string) error
	FailDelete func(receiptHandle string) error
	ReceiveErr error
	Calls      []Call
}

var ErrorTest = errors.New("test")

var ErrSendRejected = errors.New("send rejected")

func (g *Recording) record(c Call) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, c)
}

func (g *Recording) CallsOf(op string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	var calls []Call
	for _, c := range g.Calls {
		if c.Op == op {
			calls = append(calls, c)
		}
	}
	return calls
}

func (g *Recording) ReceiveMessages(_ context.Context, params *sqsredrive.ReceiveMessagesInput) (*sqsredrive.ReceiveMessagesOutput, error) {
	g.record(Call{Op: "receive", QueueURL: params.QueueURL, MaxMessages: params.MaxNumberOfMessages})
	if g.ReceiveErr != nil {
		return nil, g.ReceiveErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Batches != nil {
		if len(g.Batches) == 0 {
			return &sqsredrive.ReceiveMessagesOutput{}, nil
		}
		batch := g.Batches[0]
		g.Batches = g.Batches[1:]
		return &sqsredrive.ReceiveMessagesOutput{Messages: batch}, nil
	}
	n := min(params.MaxNumberOfMessages, len(g.DLQ))
	batch := append([]sqsredrive.MessageSnapshot(nil), g.DLQ[:n]...)
	g.DLQ = g.DLQ[n:]
	return &sqsredrive.ReceiveMessagesOutput{Messages: batch}, nil
}

func (g *Recording) SendMessage(_ context.Context, params *sqsredrive.SendMessageInput) (*sqsredrive.SendMessageOutput, error) {
	g.record(Call{Op: "send", QueueURL: params.QueueURL, MessageBody: params.Body, Attributes: params.Attributes})
	if g.FailSend != nil {
		if err := g.FailSend(params.Body); err != nil {
			return nil, err
		}
	}
	return &sqsredrive.SendMessageOutput{MessageID: "sent-" + params.Body}, nil
}

func (g *Recording) DeleteMessage(_ context.Context, params *sqsredrive.DeleteMessageInput) (*sqsredrive.DeleteMessageOutput, error) {
	g.record(Call{Op: "delete", QueueURL: params.QueueURL, ReceiptHandle: params.ReceiptHandle})
	if g.FailDelete != nil {
		if err := g.FailDelete(params.ReceiptHandle); err != nil {
			return nil, err
		}
	}
	return &sqsredrive.DeleteMessageOutput{}, nil
}

func (g *Recording) ChangeMessageVisibility(_ context.Context, params *sqsredrive.ChangeMessageVisibilityInput) (*sqsredrive.ChangeMessageVisibilityOutput, error) {
	g.record(Call{Op: "visibility", QueueURL: params.QueueURL, ReceiptHandle: params.ReceiptHandle})
	return &sqsredrive.ChangeMessageVisibilityOutput{}, nil
}

func (g *Recording) PurgeQueue(_ context.Context, params *sqsredrive.PurgeQueueInput) (*sqsredrive.PurgeQueueOutput, error) {
	g.record(Call{Op: "purge", QueueURL: params.QueueURL})
	return &sqsredrive.PurgeQueueOutput{}, nil
}

func (g *Recording) GetQueueURL(_ context.Context, params *sqsredrive.GetQueueURLInput) (*sqsredrive.GetQueueURLOutput, error) {
	g.record(Call{Op: "url", QueueURL: params.Identifier})
	return &sqsredrive.GetQueueURLOutput{QueueURL: params.Identifier}, nil
}

func (g *Recording) GetQueueAttributes(_ context.Context, params *sqsredrive.GetQueueAttributesInput) (*sqsredrive.GetQueueAttributesOutput, error) {
	g.record(Call{Op: "attributes", QueueURL: params.QueueURL})
	return &sqsredrive.GetQueueAttributesOutput{Attributes: map[string]string{}}, nil
}
