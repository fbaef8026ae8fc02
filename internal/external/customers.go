package external

import (
	"context"

	stripe "github.com/stripe/stripe-go/v82"
)

// CustomersClient manages /v1/customers.
type CustomersClient struct {
	s *StripeClient
}

func (c *CustomersClient) Create(ctx context.Context, params Params) (*stripe.Customer, error) {
	out := &stripe.Customer{}
	if err := c.s.post(ctx, "customers.create", "/v1/customers", params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CustomersClient) Get(ctx context.Context, id string, params Params) (*stripe.Customer, error) {
	path, err := resourcePath("customers.get", "/v1/customers", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Customer{}
	if err := c.s.get(ctx, "customers.get", path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CustomersClient) Update(ctx context.Context, id string, params Params) (*stripe.Customer, error) {
	path, err := resourcePath("customers.update", "/v1/customers", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Customer{}
	if err := c.s.post(ctx, "customers.update", path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete permanently removes the customer and cancels its subscriptions.
func (c *CustomersClient) Delete(ctx context.Context, id string) (*stripe.Customer, error) {
	path, err := resourcePath("customers.delete", "/v1/customers", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Customer{}
	if err := c.s.del(ctx, "customers.delete", path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CustomersClient) List(ctx context.Context, lp ListParams) (*stripe.CustomerList, error) {
	out := &stripe.CustomerList{}
	if err := c.s.get(ctx, "customers.list", "/v1/customers", lp.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}
