// Package queue publishes verified Stripe events to SQS for downstream
// consumers.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"stripefacility/internal/types"
	"stripefacility/internal/webhook"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Message attribute names set on every published event.
const (
	AttrEventType       = "event_type"
	AttrEndpoint        = "endpoint"
	AttrContentEncoding = "content_encoding"
)

// EventMessage is the SQS body for one verified event. Payload holds the
// exact verified bytes (base64 on the wire), so consumers can re-check the
// Stripe signature against it.
type EventMessage struct {
	EventID    string    `json:"event_id,omitempty"`
	EventType  string    `json:"event_type"`
	Endpoint   string    `json:"endpoint"`
	Livemode   bool      `json:"livemode"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    []byte    `json:"payload"`
}

// EventPublisher sends verified events to a single SQS queue. FIFO queues
// (URL ending in .fifo) are grouped by endpoint and deduplicated by event ID.
type EventPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
}

// NewEventPublisher creates an EventPublisher for queueURL.
func NewEventPublisher(client SQSSender, queueURL string, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Publish enqueues evt as received on endpoint.
func (p *EventPublisher) Publish(ctx context.Context, endpoint string, evt *webhook.Event) error {
	msg := EventMessage{
		EventID:    evt.ID(),
		EventType:  evt.Type(),
		Endpoint:   endpoint,
		Livemode:   evt.Livemode(),
		ReceivedAt: p.now(),
		Payload:    evt.Raw(),
	}

	body, encoding, err := EncodeEventMessage(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to encode event %s: %w", msg.EventID, err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			AttrEventType:       stringAttr(msg.EventType),
			AttrEndpoint:        stringAttr(endpoint),
			AttrContentEncoding: stringAttr(encoding),
		},
	}
	if strings.HasSuffix(p.queueURL, ".fifo") {
		dedupe := msg.EventID
		if dedupe == "" {
			dedupe = uuid.NewString()
		}
		input.MessageGroupId = aws.String(endpoint)
		input.MessageDeduplicationId = aws.String(dedupe)
	}

	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return types.NewAppErrorWithDetails(
			types.ErrCodeInternalQueue,
			fmt.Sprintf("queue: failed to send event %s", msg.EventID),
			err,
			map[string]any{"queue_url": p.queueURL},
		)
	}

	attrs := []any{
		"event_id", msg.EventID,
		"event_type", msg.EventType,
		"endpoint", endpoint,
		"content_encoding", encoding,
	}
	if out != nil && out.MessageId != nil {
		attrs = append(attrs, "message_id", *out.MessageId)
	}
	p.logger.InfoContext(ctx, "stripe event published", attrs...)
	return nil
}

// Ping reports whether the publisher is configured. SQS has no cheap
// connectivity probe, so the health check only asserts configuration.
func (p *EventPublisher) Ping(context.Context) error {
	if p.queueURL == "" {
		return fmt.Errorf("queue: no queue URL configured")
	}
	return nil
}

func stringAttr(v string) sqsTypes.MessageAttributeValue {
	if v == "" {
		v = "unknown"
	}
	return sqsTypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}
