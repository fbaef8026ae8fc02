package external

import (
	"context"

	stripe "github.com/stripe/stripe-go/v82"
)

// CheckoutSessionsClient manages /v1/checkout/sessions.
type CheckoutSessionsClient struct {
	s *StripeClient
}

// Create starts a hosted Checkout session. Callers redirect the customer to
// the returned session's URL.
func (c *CheckoutSessionsClient) Create(ctx context.Context, params Params) (*stripe.CheckoutSession, error) {
	out := &stripe.CheckoutSession{}
	if err := c.s.post(ctx, "checkout.sessions.create", "/v1/checkout/sessions", params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}
