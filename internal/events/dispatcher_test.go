package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stripefacility/internal/db"
	"stripefacility/internal/types"
	"stripefacility/internal/webhook"
)

// --- Mocks ---

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Claim(ctx context.Context, entry db.LedgerEntry) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) Release(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *mockLedger) MarkProcessed(ctx context.Context, eventID string, at time.Time) error {
	return m.Called(ctx, eventID, at).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, endpoint string, evt *webhook.Event) error {
	return m.Called(ctx, endpoint, evt).Error(0)
}

type recordedPublish struct {
	endpoint string
	ok       bool
}

type fakeRecorder struct {
	calls []recordedPublish
}

func (f *fakeRecorder) RecordPublish(_ context.Context, endpoint string, ok bool) {
	f.calls = append(f.calls, recordedPublish{endpoint, ok})
}

// --- Helpers ---

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func verifiedEvent(t *testing.T, body string) *webhook.Event {
	t.Helper()
	header, err := webhook.Sign([]byte(body), testNow, types.SecretString("whsec_events"))
	require.NoError(t, err)
	evt, err := webhook.Verify([]byte(body), header, "whsec_events", webhook.DefaultTolerance, testNow)
	require.NoError(t, err)
	return evt
}

func newTestDispatcher(opts ...Option) *Dispatcher {
	opts = append(opts, WithClock(func() time.Time { return testNow }))
	return NewDispatcher(slog.New(slog.DiscardHandler), opts...)
}

const invoicePaid = `{"id":"evt_1","type":"invoice.paid","livemode":true,"data":{"object":{"id":"in_1"}}}`

// --- Tests ---

func TestDispatch_ClaimsPublishesAndMarks(t *testing.T) {
	ledger := new(mockLedger)
	pub := new(mockPublisher)
	rec := &fakeRecorder{}
	d := newTestDispatcher(WithLedger(ledger), WithPublisher(pub), WithRecorder(rec))
	evt := verifiedEvent(t, invoicePaid)
	ctx := context.Background()

	ledger.On("Claim", ctx, db.LedgerEntry{
		EventID:    "evt_1",
		Endpoint:   "invoice",
		EventType:  "invoice.paid",
		Livemode:   true,
		ReceivedAt: testNow,
	}).Return(true, nil)
	pub.On("Publish", ctx, "invoice", evt).Return(nil)
	ledger.On("MarkProcessed", ctx, "evt_1", testNow).Return(nil)

	var handled []string
	d.On("invoice.paid", func(_ context.Context, endpoint string, e *webhook.Event) error {
		handled = append(handled, "typed:"+endpoint)
		return nil
	})
	d.On(AnyType, func(_ context.Context, _ string, e *webhook.Event) error {
		handled = append(handled, "any:"+e.ID())
		return nil
	})
	d.On("customer.created", func(context.Context, string, *webhook.Event) error {
		t.Error("handler for another type must not run")
		return nil
	})

	outcome, err := d.Dispatch(ctx, "invoice", evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, []string{"typed:invoice", "any:evt_1"}, handled)
	assert.Equal(t, []recordedPublish{{"invoice", true}}, rec.calls)
	ledger.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestDispatch_Duplicate(t *testing.T) {
	ledger := new(mockLedger)
	pub := new(mockPublisher)
	d := newTestDispatcher(WithLedger(ledger), WithPublisher(pub))

	ledger.On("Claim", mock.Anything, mock.Anything).Return(false, nil)

	outcome, err := d.Dispatch(context.Background(), "invoice", verifiedEvent(t, invoicePaid))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, "duplicate", outcome.String())
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_PublishFailureReleasesClaim(t *testing.T) {
	ledger := new(mockLedger)
	pub := new(mockPublisher)
	rec := &fakeRecorder{}
	d := newTestDispatcher(WithLedger(ledger), WithPublisher(pub), WithRecorder(rec))
	boom := errors.New("sqs down")

	ledger.On("Claim", mock.Anything, mock.Anything).Return(true, nil)
	pub.On("Publish", mock.Anything, "invoice", mock.Anything).Return(boom)
	ledger.On("Release", mock.Anything, "evt_1").Return(nil)

	_, err := d.Dispatch(context.Background(), "invoice", verifiedEvent(t, invoicePaid))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []recordedPublish{{"invoice", false}}, rec.calls)
	ledger.AssertExpectations(t)
	ledger.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_HandlerFailureReleasesClaim(t *testing.T) {
	ledger := new(mockLedger)
	d := newTestDispatcher(WithLedger(ledger))
	boom := errors.New("handler failed")

	ledger.On("Claim", mock.Anything, mock.Anything).Return(true, nil)
	ledger.On("Release", mock.Anything, "evt_1").Return(errors.New("release failed too"))
	d.On("invoice.paid", func(context.Context, string, *webhook.Event) error { return boom })

	_, err := d.Dispatch(context.Background(), "invoice", verifiedEvent(t, invoicePaid))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "invoice.paid")
	ledger.AssertExpectations(t)
}

func TestDispatch_ClaimError(t *testing.T) {
	ledger := new(mockLedger)
	d := newTestDispatcher(WithLedger(ledger))
	boom := errors.New("db down")

	ledger.On("Claim", mock.Anything, mock.Anything).Return(false, boom)
	d.On(AnyType, func(context.Context, string, *webhook.Event) error {
		t.Error("handlers must not run when the claim fails")
		return nil
	})

	_, err := d.Dispatch(context.Background(), "invoice", verifiedEvent(t, invoicePaid))
	require.ErrorIs(t, err, boom)
}

func TestDispatch_EventWithoutIDSkipsLedger(t *testing.T) {
	ledger := new(mockLedger)
	d := newTestDispatcher(WithLedger(ledger))
	ran := false
	d.On(AnyType, func(context.Context, string, *webhook.Event) error { ran = true; return nil })

	outcome, err := d.Dispatch(context.Background(), "customer", verifiedEvent(t, `{"type":"customer.created"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.True(t, ran)
	ledger.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
}

func TestDispatch_MarkProcessedFailureIsNotFatal(t *testing.T) {
	ledger := new(mockLedger)
	d := newTestDispatcher(WithLedger(ledger))

	ledger.On("Claim", mock.Anything, mock.Anything).Return(true, nil)
	ledger.On("MarkProcessed", mock.Anything, "evt_1", testNow).Return(errors.New("timeout"))

	outcome, err := d.Dispatch(context.Background(), "invoice", verifiedEvent(t, invoicePaid))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestDispatch_NoDependencies(t *testing.T) {
	d := NewDispatcher(nil)
	outcome, err := d.Dispatch(context.Background(), "invoice", verifiedEvent(t, invoicePaid))
	require.NoError(t, err)
	assert.Equal(t, "processed", outcome.String())
}
