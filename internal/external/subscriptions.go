package external

import (
	"context"

	stripe "github.com/stripe/stripe-go/v82"
)

// SubscriptionsClient manages /v1/subscriptions.
type SubscriptionsClient struct {
	s *StripeClient
}

func (c *SubscriptionsClient) Create(ctx context.Context, params Params) (*stripe.Subscription, error) {
	out := &stripe.Subscription{}
	if err := c.s.post(ctx, "subscriptions.create", "/v1/subscriptions", params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SubscriptionsClient) Get(ctx context.Context, id string, params Params) (*stripe.Subscription, error) {
	path, err := resourcePath("subscriptions.get", "/v1/subscriptions", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Subscription{}
	if err := c.s.get(ctx, "subscriptions.get", path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SubscriptionsClient) Update(ctx context.Context, id string, params Params) (*stripe.Subscription, error) {
	path, err := resourcePath("subscriptions.update", "/v1/subscriptions", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Subscription{}
	if err := c.s.post(ctx, "subscriptions.update", path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel cancels immediately. params may carry invoice_now, prorate or
// cancellation_details.
func (c *SubscriptionsClient) Cancel(ctx context.Context, id string, params Params) (*stripe.Subscription, error) {
	path, err := resourcePath("subscriptions.cancel", "/v1/subscriptions", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Subscription{}
	if err := c.s.del(ctx, "subscriptions.cancel", path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns subscriptions, optionally filtered by status ("active",
// "past_due", "canceled", "all", ...). An empty status uses Stripe's default,
// which excludes canceled subscriptions.
func (c *SubscriptionsClient) List(ctx context.Context, status stripe.SubscriptionStatus, lp ListParams) (*stripe.SubscriptionList, error) {
	values := lp.Encode()
	if status != "" {
		values.Set("status", string(status))
	}
	out := &stripe.SubscriptionList{}
	if err := c.s.get(ctx, "subscriptions.list", "/v1/subscriptions", values, out); err != nil {
		return nil, err
	}
	return out, nil
}
