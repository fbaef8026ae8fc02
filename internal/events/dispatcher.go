// Package events hands verified webhook events to the rest of the system:
// the idempotency ledger, the SQS publisher and in-process handlers.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stripefacility/internal/db"
	"stripefacility/internal/webhook"
)

// Ledger records claimed events. *db.EventLedger implements it.
type Ledger interface {
	Claim(ctx context.Context, entry db.LedgerEntry) (bool, error)
	Release(ctx context.Context, eventID string) error
	MarkProcessed(ctx context.Context, eventID string, at time.Time) error
}

// Publisher forwards events downstream. *queue.EventPublisher implements it.
type Publisher interface {
	Publish(ctx context.Context, endpoint string, evt *webhook.Event) error
}

// PublishRecorder counts publish outcomes. *metrics.CloudWatch implements it.
type PublishRecorder interface {
	RecordPublish(ctx context.Context, endpoint string, ok bool)
}

// HandlerFunc processes one event in-process.
type HandlerFunc func(ctx context.Context, endpoint string, evt *webhook.Event) error

// AnyType registers a handler for every event type.
const AnyType = "*"

// Outcome describes what Dispatch did with an event.
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeDuplicate
)

func (o Outcome) String() string {
	if o == OutcomeDuplicate {
		return "duplicate"
	}
	return "processed"
}

// Dispatcher runs the post-verification pipeline. Ledger, publisher and
// recorder are all optional. It is safe for concurrent use.
type Dispatcher struct {
	ledger    Ledger
	publisher Publisher
	recorder  PublishRecorder
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLedger(l Ledger) Option            { return func(d *Dispatcher) { d.ledger = l } }
func WithPublisher(p Publisher) Option      { return func(d *Dispatcher) { d.publisher = p } }
func WithRecorder(r PublishRecorder) Option { return func(d *Dispatcher) { d.recorder = r } }
func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// NewDispatcher creates a Dispatcher.
func NewDispatcher(logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		handlers: make(map[string][]HandlerFunc),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// On registers fn for eventType, or for every type when eventType is AnyType.
// Handlers run in registration order, exact-type handlers first.
func (d *Dispatcher) On(eventType string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], fn)
}

// Dispatch claims, publishes and handles evt. If publishing or a handler
// fails, the claim is released and the error returned so that the provider's
// retry is processed again.
func (d *Dispatcher) Dispatch(ctx context.Context, endpoint string, evt *webhook.Event) (Outcome, error) {
	claimed := false
	if d.ledger != nil && evt.ID() != "" {
		ok, err := d.ledger.Claim(ctx, db.LedgerEntry{
			EventID:    evt.ID(),
			Endpoint:   endpoint,
			EventType:  evt.Type(),
			Livemode:   evt.Livemode(),
			ReceivedAt: d.now(),
		})
		if err != nil {
			return OutcomeProcessed, fmt.Errorf("events: claim %s: %w", evt.ID(), err)
		}
		if !ok {
			return OutcomeDuplicate, nil
		}
		claimed = true
	}

	if err := d.process(ctx, endpoint, evt); err != nil {
		if claimed {
			if relErr := d.ledger.Release(context.WithoutCancel(ctx), evt.ID()); relErr != nil {
				d.logger.ErrorContext(ctx, "failed to release webhook event claim",
					"event_id", evt.ID(),
					"error", relErr,
				)
			}
		}
		return OutcomeProcessed, err
	}

	if claimed {
		if err := d.ledger.MarkProcessed(ctx, evt.ID(), d.now()); err != nil {
			// The event was fully handled; a missing stamp only affects reporting.
			d.logger.WarnContext(ctx, "failed to mark webhook event processed",
				"event_id", evt.ID(),
				"error", err,
			)
		}
	}
	return OutcomeProcessed, nil
}

func (d *Dispatcher) process(ctx context.Context, endpoint string, evt *webhook.Event) error {
	if d.publisher != nil {
		err := d.publisher.Publish(ctx, endpoint, evt)
		if d.recorder != nil {
			d.recorder.RecordPublish(ctx, endpoint, err == nil)
		}
		if err != nil {
			return fmt.Errorf("events: publish %s: %w", evt.ID(), err)
		}
	}

	for _, fn := range d.handlersFor(evt.Type()) {
		if err := fn(ctx, endpoint, evt); err != nil {
			return fmt.Errorf("events: handle %s (%s): %w", evt.ID(), evt.Type(), err)
		}
	}

	d.logger.InfoContext(ctx, "stripe event dispatched",
		"event_id", evt.ID(),
		"event_type", evt.Type(),
		"endpoint", endpoint,
		"livemode", evt.Livemode(),
	)
	return nil
}

func (d *Dispatcher) handlersFor(eventType string) []HandlerFunc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]HandlerFunc, 0, len(d.handlers[eventType])+len(d.handlers[AnyType]))
	if eventType != AnyType {
		out = append(out, d.handlers[eventType]...)
	}
	return append(out, d.handlers[AnyType]...)
}
