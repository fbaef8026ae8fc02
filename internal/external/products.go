package external

import (
	"context"

	stripe "github.com/stripe/stripe-go/v82"
)

// ProductsClient manages /v1/products.
type ProductsClient struct {
	s *StripeClient
}

func (c *ProductsClient) Create(ctx context.Context, params Params) (*stripe.Product, error) {
	out := &stripe.Product{}
	if err := c.s.post(ctx, "products.create", "/v1/products", params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ProductsClient) Get(ctx context.Context, id string, params Params) (*stripe.Product, error) {
	path, err := resourcePath("products.get", "/v1/products", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Product{}
	if err := c.s.get(ctx, "products.get", path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ProductsClient) Update(ctx context.Context, id string, params Params) (*stripe.Product, error) {
	path, err := resourcePath("products.update", "/v1/products", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Product{}
	if err := c.s.post(ctx, "products.update", path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete only succeeds for products without prices; Stripe rejects the rest.
func (c *ProductsClient) Delete(ctx context.Context, id string) (*stripe.Product, error) {
	path, err := resourcePath("products.delete", "/v1/products", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Product{}
	if err := c.s.del(ctx, "products.delete", path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ProductsClient) List(ctx context.Context, lp ListParams) (*stripe.ProductList, error) {
	out := &stripe.ProductList{}
	if err := c.s.get(ctx, "products.list", "/v1/products", lp.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}
