// Package handlers contains the HTTP handlers of the Stripe facility.
//
// The webhook endpoints are not behind any auth middleware; they are called
// directly by Stripe and authenticated by the Stripe-Signature header.
package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"stripefacility/internal/core"
	"stripefacility/internal/events"
	"stripefacility/internal/metrics"
	"stripefacility/internal/types"
	"stripefacility/internal/webhook"
)

// maxWebhookBodySize is the maximum allowed size of a Stripe webhook payload (64 KB).
const maxWebhookBodySize = 64 * 1024

// EventDispatcher receives verified events. *events.Dispatcher implements it.
type EventDispatcher interface {
	Dispatch(ctx context.Context, endpoint string, evt *webhook.Event) (events.Outcome, error)
}

// VerificationRecorder counts verification outcomes. *metrics.CloudWatch
// implements it.
type VerificationRecorder interface {
	RecordVerification(ctx context.Context, endpoint, result string)
}

// WebhookHandler serves POST /webhooks/{endpoint}. Each endpoint type has
// its own Verifier and therefore its own signing secret.
type WebhookHandler struct {
	verifiers  map[string]*webhook.Verifier
	dispatcher EventDispatcher
	recorder   VerificationRecorder
	logger     *slog.Logger
}

type webhookAck struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// NewWebhookHandler creates a WebhookHandler. recorder and logger may be nil.
func NewWebhookHandler(
	verifiers map[string]*webhook.Verifier,
	dispatcher EventDispatcher,
	recorder VerificationRecorder,
	logger *slog.Logger,
) (*WebhookHandler, error) {
	if len(verifiers) == 0 {
		return nil, types.NewAppError(types.ErrCodeInternalConfig, "at least one webhook verifier is required", nil)
	}
	for endpoint, v := range verifiers {
		if v == nil {
			return nil, types.NewAppError(types.ErrCodeInternalConfig, "nil verifier for webhook endpoint "+endpoint, nil)
		}
	}
	if dispatcher == nil {
		return nil, types.NewAppError(types.ErrCodeInternalConfig, "event dispatcher is required", nil)
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		verifiers:  verifiers,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger,
	}, nil
}

// Endpoints lists the configured endpoint types in sorted order.
func (h *WebhookHandler) Endpoints() []string {
	out := make([]string, 0, len(h.verifiers))
	for endpoint := range h.verifiers {
		out = append(out, endpoint)
	}
	sort.Strings(out)
	return out
}

// RegisterRoutes mounts the webhook endpoints.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/{endpoint}", h.Handle)
}

// Handle verifies and dispatches one webhook delivery.
//
//  1. Resolve the endpoint's Verifier (404 if unknown).
//  2. Read the raw body, capped at 64 KB.
//  3. Verify the Stripe-Signature header against the exact bytes read.
//  4. Dispatch; a failure returns 500 so Stripe redelivers.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := chi.URLParam(r, "endpoint")

	verifier, ok := h.verifiers[endpoint]
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundWebhookEndpoint,
			"unknown webhook endpoint",
			nil,
		))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		code := types.ErrCodeValidationInvalidParam
		msg := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			code = types.ErrCodeValidationBodyTooLarge
			msg = "request body must not exceed 64KB"
		}
		h.logger.WarnContext(ctx, "failed to read webhook body",
			"endpoint", endpoint,
			"error", err,
		)
		h.recorder.RecordVerification(ctx, endpoint, "unreadable_body")
		core.Error(w, r, types.NewAppError(code, msg, nil))
		return
	}

	evt, err := verifier.Verify(payload, r.Header.Get(webhook.HeaderName))
	if err != nil {
		reason := webhook.ReasonOf(err)
		h.logger.WarnContext(ctx, "webhook verification rejected",
			"endpoint", endpoint,
			"reason", string(reason),
			"authentication_failure", reason.IsAuthentication(),
			"remote_addr", r.RemoteAddr,
		)
		h.recorder.RecordVerification(ctx, endpoint, string(reason))
		core.Error(w, r, rejection(reason))
		return
	}
	h.recorder.RecordVerification(ctx, endpoint, metrics.ResultVerified)

	outcome, err := h.dispatcher.Dispatch(ctx, endpoint, evt)
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook event dispatch failed",
			"endpoint", endpoint,
			"event_id", evt.ID(),
			"event_type", evt.Type(),
			"error", err,
		)
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "event could not be processed", err))
		return
	}

	ack := webhookAck{Received: true}
	if outcome == events.OutcomeDuplicate {
		ack.Duplicate = true
		h.recorder.RecordVerification(ctx, endpoint, metrics.ResultDuplicate)
	}
	core.JSON(w, r, http.StatusOK, ack)
}

// rejection maps a verification failure to the client-facing error. Only
// the failure class is exposed.
func rejection(reason webhook.Reason) *types.AppError {
	switch reason {
	case webhook.ReasonMissingSignatureHeader:
		return types.NewAppError(types.ErrCodeValidationSignatureMissing, "missing Stripe-Signature header", nil)
	case webhook.ReasonMalformedHeader:
		return types.NewAppError(types.ErrCodeValidationSignatureFormat, "malformed Stripe-Signature header", nil)
	case webhook.ReasonMalformedPayload:
		return types.NewAppError(types.ErrCodeValidationPayload, "payload is not a valid event", nil)
	case webhook.ReasonSignatureMismatch:
		return types.NewAppError(types.ErrCodeAuthSignatureInvalid, "signature verification failed", nil)
	case webhook.ReasonStaleTimestamp:
		return types.NewAppError(types.ErrCodeAuthSignatureExpired, "signature timestamp outside tolerance", nil)
	default:
		return types.NewAppError(types.ErrCodeInternalConfig, "webhook verification unavailable", nil)
	}
}
