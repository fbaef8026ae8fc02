package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"

	"stripefacility/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
const stripeAPIBase = "https://api.stripe.com"

const stripeUserAgent = "StripeFacility/1.0"

// maxErrorBodySize caps how much of a failed response is read.
const maxErrorBodySize = 64 * 1024

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey types.SecretString
	BaseURL   string // defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeClient calls the Stripe REST API through BaseClient. Resource
// operations live on the typed sub-clients (Customers, Invoices, ...), which
// share one credential, breaker and retry policy.
//
// A StripeClient cannot exist without a secret key, so no operation checks
// for one.
type StripeClient struct {
	base      *BaseClient
	secretKey types.SecretString
	baseURL   string
	logger    *slog.Logger
	newKey    func() string

	Customers        *CustomersClient
	Products         *ProductsClient
	Subscriptions    *SubscriptionsClient
	Invoices         *InvoicesClient
	InvoiceItems     *InvoiceItemsClient
	CheckoutSessions *CheckoutSessionsClient
}

// NewStripeClient creates a StripeClient with the default retry policy.
// httpClient may be nil.
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig) (*StripeClient, error) {
	base := NewBaseClient(httpClient, "stripe", DefaultRetryPolicy(), stripeUserAgent)
	return NewStripeClientWithBase(base, cfg)
}

// NewStripeClientWithBase creates a StripeClient over a pre-configured
// BaseClient. Tests use it to control retries and sleeping.
func NewStripeClientWithBase(base *BaseClient, cfg StripeClientConfig) (*StripeClient, error) {
	if cfg.SecretKey.IsZero() {
		return nil, types.NewAppError(types.ErrCodeInternalConfig, "stripe secret key is required", nil)
	}
	if base == nil {
		return nil, types.NewAppError(types.ErrCodeInternalConfig, "base client is required", nil)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
		newKey:    func() string { return uuid.NewString() },
	}
	s.Customers = &CustomersClient{s: s}
	s.Products = &ProductsClient{s: s}
	s.Subscriptions = &SubscriptionsClient{s: s}
	s.Invoices = &InvoicesClient{s: s}
	s.InvoiceItems = &InvoiceItemsClient{s: s}
	s.CheckoutSessions = &CheckoutSessionsClient{s: s}
	return s, nil
}

// Livemode reports whether the bound key is a live key.
func (s *StripeClient) Livemode() bool {
	return !types.IsTestKey(s.secretKey.Unmask())
}

// ---------------------------------------------------------------------------
// HTTP Helpers
// ---------------------------------------------------------------------------

// call performs one API operation and decodes a 2xx body into out.
func (s *StripeClient) call(ctx context.Context, operation, method, path string, params url.Values, out any) error {
	reqURL := s.baseURL + path

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(params.Encode())
	} else if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, operation+": failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey.Unmask())
	req.Header.Set("Stripe-Version", stripe.APIVersion)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		// One key per logical call; BaseClient replays it on retries.
		req.Header.Set("Idempotency-Key", s.newKey())
	}

	resp, err := s.base.Do(req)
	if err != nil {
		return s.wrapTransportError(operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appErr := s.handleErrorResponse(resp, operation)
		s.logger.WarnContext(ctx, "stripe request failed",
			"operation", operation,
			"status", resp.StatusCode,
			"code", appErr.Code,
			"request_id", resp.Header.Get("Request-Id"),
		)
		return appErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe, operation+": failed to decode Stripe response", err)
	}
	return nil
}

func (s *StripeClient) get(ctx context.Context, operation, path string, params url.Values, out any) error {
	return s.call(ctx, operation, http.MethodGet, path, params, out)
}

func (s *StripeClient) post(ctx context.Context, operation, path string, params url.Values, out any) error {
	return s.call(ctx, operation, http.MethodPost, path, params, out)
}

func (s *StripeClient) del(ctx context.Context, operation, path string, params url.Values, out any) error {
	return s.call(ctx, operation, http.MethodDelete, path, params, out)
}

// resourcePath joins a collection path and an ID, rejecting empty IDs
// locally so no request is made.
func resourcePath(operation, collection, id string, suffix ...string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			operation+": id is required",
			nil,
			map[string]any{"field": "id"},
		)
	}
	path := collection + "/" + url.PathEscape(id)
	for _, part := range suffix {
		path += "/" + part
	}
	return path, nil
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// StripeError is the provider error carried inside the returned AppError.
// Use errors.As to reach it.
type StripeError struct {
	HTTPStatus  int    `json:"-"`
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
	Param       string `json:"param"`
	DocURL      string `json:"doc_url"`
	RequestID   string `json:"-"`
}

func (e *StripeError) Error() string {
	msg := fmt.Sprintf("stripe: status %d", e.HTTPStatus)
	if e.Type != "" {
		msg += " type=" + e.Type
	}
	if e.Code != "" {
		msg += " code=" + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

type stripeErrorResponse struct {
	Error StripeError `json:"error"`
}

// handleErrorResponse reads a non-2xx Stripe response into an AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	parsed := stripeErrorResponse{}
	if readErr != nil || json.Unmarshal(raw, &parsed) != nil {
		parsed.Error = StripeError{Message: strings.TrimSpace(string(raw))}
		if readErr != nil {
			parsed.Error.Message = "unreadable response body"
		}
	}
	stripeErr := &parsed.Error
	stripeErr.HTTPStatus = resp.StatusCode
	stripeErr.RequestID = resp.Header.Get("Request-Id")

	return mapStripeError(operation, stripeErr)
}

// mapStripeError picks the AppError code for a provider failure.
func mapStripeError(operation string, e *StripeError) *types.AppError {
	var code types.ErrorCode
	switch {
	case e.Code == "card_declined" || e.DeclineCode != "" || e.HTTPStatus == http.StatusPaymentRequired:
		code = types.ErrCodePaymentDeclined
	case e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden:
		code = types.ErrCodeUpstreamStripeAuth
	case e.HTTPStatus == http.StatusNotFound:
		code = types.ErrCodeNotFoundResource
	case e.HTTPStatus == http.StatusConflict:
		code = types.ErrCodeConflictIdempotency
	case e.HTTPStatus == http.StatusTooManyRequests:
		code = types.ErrCodeUpstreamRateLimited
	case e.HTTPStatus >= 500:
		code = types.ErrCodeUpstreamUnavailable
	default:
		code = types.ErrCodeUpstreamStripeRequest
	}

	message := fmt.Sprintf("%s: Stripe returned %d", operation, e.HTTPStatus)
	if e.Message != "" {
		message += ": " + e.Message
	}

	return types.NewAppErrorWithDetails(code, message, e, map[string]any{
		"http_status":  e.HTTPStatus,
		"stripe_type":  e.Type,
		"stripe_code":  e.Code,
		"decline_code": e.DeclineCode,
		"param":        e.Param,
		"request_id":   e.RequestID,
	})
}

// wrapTransportError wraps failures that produced no HTTP response.
func (s *StripeClient) wrapTransportError(operation string, err error) error {
	if appErr, ok := err.(*types.AppError); ok {
		return &types.AppError{
			Code:    appErr.Code,
			Message: operation + ": " + appErr.Message,
			Err:     appErr.Err,
			Details: appErr.Details,
		}
	}
	return types.NewAppError(types.ErrCodeUpstreamStripe, operation+": Stripe request failed", err)
}
