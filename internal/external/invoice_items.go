package external

import (
	"context"

	stripe "github.com/stripe/stripe-go/v82"
)

// InvoiceItemsClient manages /v1/invoiceitems.
type InvoiceItemsClient struct {
	s *StripeClient
}

func (c *InvoiceItemsClient) Create(ctx context.Context, params Params) (*stripe.InvoiceItem, error) {
	out := &stripe.InvoiceItem{}
	if err := c.s.post(ctx, "invoiceitems.create", "/v1/invoiceitems", params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InvoiceItemsClient) Get(ctx context.Context, id string, params Params) (*stripe.InvoiceItem, error) {
	path, err := resourcePath("invoiceitems.get", "/v1/invoiceitems", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.InvoiceItem{}
	if err := c.s.get(ctx, "invoiceitems.get", path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InvoiceItemsClient) Update(ctx context.Context, id string, params Params) (*stripe.InvoiceItem, error) {
	path, err := resourcePath("invoiceitems.update", "/v1/invoiceitems", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.InvoiceItem{}
	if err := c.s.post(ctx, "invoiceitems.update", path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an item that is not yet attached to a finalized invoice.
func (c *InvoiceItemsClient) Delete(ctx context.Context, id string) (*stripe.InvoiceItem, error) {
	path, err := resourcePath("invoiceitems.delete", "/v1/invoiceitems", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.InvoiceItem{}
	if err := c.s.del(ctx, "invoiceitems.delete", path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InvoiceItemsClient) List(ctx context.Context, lp ListParams) (*stripe.InvoiceItemList, error) {
	out := &stripe.InvoiceItemList{}
	if err := c.s.get(ctx, "invoiceitems.list", "/v1/invoiceitems", lp.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}
