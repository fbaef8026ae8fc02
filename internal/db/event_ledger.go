package db

import (
	"context"
	"log/slog"
	"time"

	"stripefacility/internal/types"
)

// LedgerSchema creates the webhook event ledger. It is idempotent.
const LedgerSchema = `
CREATE TABLE IF NOT EXISTS stripe_webhook_events (
    event_id     TEXT PRIMARY KEY,
    endpoint     TEXT NOT NULL,
    event_type   TEXT NOT NULL,
    livemode     BOOLEAN NOT NULL DEFAULT FALSE,
    received_at  TIMESTAMPTZ NOT NULL,
    processed_at TIMESTAMPTZ
)`

// LedgerEntry is one verified event as recorded in the ledger.
type LedgerEntry struct {
	EventID    string
	Endpoint   string
	EventType  string
	Livemode   bool
	ReceivedAt time.Time
}

// DefaultClaimTTL is how long an unprocessed claim blocks redeliveries. It
// must exceed the request timeout so a live claim is never taken over.
const DefaultClaimTTL = 10 * time.Minute

// EventLedger records which Stripe events have been accepted so that
// redelivered events are acknowledged without being processed twice.
//
// Claim is the only write on the hot path. It relies on the primary key:
// the first INSERT for an event ID wins. A later INSERT affects a row only
// when the existing claim was never processed and is older than the claim
// TTL, which recovers events whose holder died before releasing them.
type EventLedger struct {
	db       DBTX
	logger   *slog.Logger
	claimTTL time.Duration
}

// LedgerOption configures an EventLedger.
type LedgerOption func(*EventLedger)

// WithClaimTTL overrides DefaultClaimTTL. Non-positive values are ignored.
func WithClaimTTL(d time.Duration) LedgerOption {
	return func(l *EventLedger) {
		if d > 0 {
			l.claimTTL = d
		}
	}
}

// NewEventLedger creates an EventLedger over a pool or transaction.
func NewEventLedger(db DBTX, logger *slog.Logger, opts ...LedgerOption) *EventLedger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &EventLedger{db: db, logger: logger, claimTTL: DefaultClaimTTL}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureSchema creates the ledger table if it does not exist.
func (l *EventLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, LedgerSchema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create event ledger table", err)
	}
	return nil
}

// Claim records the event and reports whether this caller now owns it.
// false with a nil error means the event was processed, or is held by a
// claim younger than the claim TTL.
func (l *EventLedger) Claim(ctx context.Context, entry LedgerEntry) (bool, error) {
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}

	tag, err := l.db.Exec(ctx, `
		INSERT INTO stripe_webhook_events (event_id, endpoint, event_type, livemode, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO UPDATE SET
			endpoint    = EXCLUDED.endpoint,
			event_type  = EXCLUDED.event_type,
			livemode    = EXCLUDED.livemode,
			received_at = EXCLUDED.received_at
		WHERE stripe_webhook_events.processed_at IS NULL
		  AND stripe_webhook_events.received_at < $6`,
		entry.EventID,
		entry.Endpoint,
		entry.EventType,
		entry.Livemode,
		entry.ReceivedAt,
		entry.ReceivedAt.Add(-l.claimTTL),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim webhook event", err)
	}

	if tag.RowsAffected() == 0 {
		l.logger.InfoContext(ctx, "duplicate webhook event",
			slog.String("event_id", entry.EventID),
			slog.String("endpoint", entry.Endpoint),
		)
		return false, nil
	}
	return true, nil
}

// Release removes a claim so that Stripe's next delivery attempt is
// processed again. Releasing an unknown event is not an error.
func (l *EventLedger) Release(ctx context.Context, eventID string) error {
	_, err := l.db.Exec(ctx,
		`DELETE FROM stripe_webhook_events WHERE event_id = $1 AND processed_at IS NULL`,
		eventID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release webhook event", err)
	}
	return nil
}

// MarkProcessed stamps processed_at on a claimed event.
func (l *EventLedger) MarkProcessed(ctx context.Context, eventID string, at time.Time) error {
	tag, err := l.db.Exec(ctx,
		`UPDATE stripe_webhook_events SET processed_at = $2 WHERE event_id = $1`,
		eventID,
		at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark webhook event processed", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundResource, "webhook event not found in ledger: "+eventID, nil)
	}
	return nil
}

// Ping checks connectivity. It backs the ledger health probe.
func (l *EventLedger) Ping(ctx context.Context) error {
	var one int
	if err := l.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "event ledger unreachable", err)
	}
	return nil
}
