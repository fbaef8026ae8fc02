package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripefacility/internal/core"
	"stripefacility/internal/events"
	"stripefacility/internal/types"
	"stripefacility/internal/webhook"
)

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

type dispatchCall struct {
	Endpoint string
	EventID  string
}

type mockDispatcher struct {
	calls   []dispatchCall
	outcome events.Outcome
	err     error
}

func (m *mockDispatcher) Dispatch(_ context.Context, endpoint string, evt *webhook.Event) (events.Outcome, error) {
	m.calls = append(m.calls, dispatchCall{Endpoint: endpoint, EventID: evt.ID()})
	return m.outcome, m.err
}

type mockRecorder struct {
	results []string
}

func (m *mockRecorder) RecordVerification(_ context.Context, endpoint, result string) {
	m.results = append(m.results, endpoint+":"+result)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const (
	invoiceSecret  = "whsec_invoice"
	customerSecret = "whsec_customer"
	eventBody      = `{"id":"evt_1","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`
)

var fixedNow = time.Unix(1700000000, 0)

type fixture struct {
	router     http.Handler
	dispatcher *mockDispatcher
	recorder   *mockRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := webhook.WithClock(func() time.Time { return fixedNow })
	inv, err := webhook.NewVerifier(invoiceSecret, clock)
	require.NoError(t, err)
	cus, err := webhook.NewVerifier(customerSecret, clock)
	require.NoError(t, err)

	f := &fixture{dispatcher: &mockDispatcher{}, recorder: &mockRecorder{}}
	h, err := NewWebhookHandler(
		map[string]*webhook.Verifier{"invoice": inv, "customer": cus},
		f.dispatcher,
		f.recorder,
		slog.New(slog.DiscardHandler),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	f.router = r
	return f
}

func signedHeader(t *testing.T, body string, secret string, ts time.Time) string {
	t.Helper()
	header, err := webhook.Sign([]byte(body), ts, types.SecretString(secret))
	require.NoError(t, err)
	return header
}

func (f *fixture) post(endpoint, body, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+endpoint, bytes.NewBufferString(body))
	if header != "" {
		req.Header.Set(webhook.HeaderName, header)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestWebhook_ValidDelivery(t *testing.T) {
	f := newFixture(t)

	rec := f.post("invoice", eventBody, signedHeader(t, eventBody, invoiceSecret, fixedNow))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Equal(t, []dispatchCall{{Endpoint: "invoice", EventID: "evt_1"}}, f.dispatcher.calls)
	assert.Equal(t, []string{"invoice:verified"}, f.recorder.results)
}

func TestWebhook_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.outcome = events.OutcomeDuplicate

	rec := f.post("invoice", eventBody, signedHeader(t, eventBody, invoiceSecret, fixedNow))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"duplicate":true}`, rec.Body.String())
	assert.Equal(t, []string{"invoice:verified", "invoice:duplicate"}, f.recorder.results)
}

func TestWebhook_EndpointSecretsAreIsolated(t *testing.T) {
	f := newFixture(t)

	// Signed with the invoice secret, delivered to the customer endpoint.
	rec := f.post("customer", eventBody, signedHeader(t, eventBody, invoiceSecret, fixedNow))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthSignatureInvalid), decodeError(t, rec).Code)
	assert.Empty(t, f.dispatcher.calls)
}

func TestWebhook_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		header     func(t *testing.T) string
		wantStatus int
		wantCode   types.ErrorCode
		wantResult string
	}{
		{
			name:       "missing header",
			body:       eventBody,
			header:     func(*testing.T) string { return "" },
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrCodeValidationSignatureMissing,
			wantResult: "invoice:missing_signature_header",
		},
		{
			name:       "malformed header",
			body:       eventBody,
			header:     func(*testing.T) string { return "v1=abc" },
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrCodeValidationSignatureFormat,
			wantResult: "invoice:malformed_header",
		},
		{
			name:       "tampered body",
			body:       strings.Replace(eventBody, "in_1", "in_2", 1),
			header:     func(t *testing.T) string { return signedHeader(t, eventBody, invoiceSecret, fixedNow) },
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthSignatureInvalid,
			wantResult: "invoice:signature_mismatch",
		},
		{
			name: "stale timestamp",
			body: eventBody,
			header: func(t *testing.T) string {
				return signedHeader(t, eventBody, invoiceSecret, fixedNow.Add(-10*time.Minute))
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthSignatureExpired,
			wantResult: "invoice:stale_timestamp",
		},
		{
			name:       "malformed payload",
			body:       `not json`,
			header:     func(t *testing.T) string { return signedHeader(t, "not json", invoiceSecret, fixedNow) },
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrCodeValidationPayload,
			wantResult: "invoice:malformed_payload",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.post("invoice", tc.body, tc.header(t))

			assert.Equal(t, tc.wantStatus, rec.Code)
			detail := decodeError(t, rec)
			assert.Equal(t, string(tc.wantCode), detail.Code)
			assert.NotContains(t, rec.Body.String(), invoiceSecret)
			assert.Equal(t, []string{tc.wantResult}, f.recorder.results)
			assert.Empty(t, f.dispatcher.calls)
		})
	}
}

func TestWebhook_UnknownEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.post("charge", eventBody, signedHeader(t, eventBody, invoiceSecret, fixedNow))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundWebhookEndpoint), decodeError(t, rec).Code)
	assert.Empty(t, f.recorder.results)
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	f := newFixture(t)
	body := `{"id":"evt_big","pad":"` + strings.Repeat("x", maxWebhookBodySize) + `"}`

	rec := f.post("invoice", body, signedHeader(t, body, invoiceSecret, fixedNow))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationBodyTooLarge), decodeError(t, rec).Code)
	assert.Empty(t, f.dispatcher.calls)
}

func TestWebhook_DispatchFailureReturns500(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = errors.New("queue unavailable")

	rec := f.post("invoice", eventBody, signedHeader(t, eventBody, invoiceSecret, fixedNow))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), detail.Code)
	assert.NotContains(t, detail.Message, "queue unavailable")
}

func TestNewWebhookHandler_Validation(t *testing.T) {
	v, err := webhook.NewVerifier("whsec_x")
	require.NoError(t, err)

	_, err = NewWebhookHandler(nil, &mockDispatcher{}, nil, nil)
	assert.Error(t, err)

	_, err = NewWebhookHandler(map[string]*webhook.Verifier{"invoice": nil}, &mockDispatcher{}, nil, nil)
	assert.Error(t, err)

	_, err = NewWebhookHandler(map[string]*webhook.Verifier{"invoice": v}, nil, nil, nil)
	assert.Error(t, err)

	h, err := NewWebhookHandler(map[string]*webhook.Verifier{"invoice": v, "customer": v}, &mockDispatcher{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer", "invoice"}, h.Endpoints())
}
