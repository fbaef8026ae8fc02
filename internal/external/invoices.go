package external

import (
	"context"
	"net/url"

	stripe "github.com/stripe/stripe-go/v82"

	"stripefacility/internal/types"
)

// InvoicesClient manages /v1/invoices and the invoice lifecycle actions.
type InvoicesClient struct {
	s *StripeClient
}

func (c *InvoicesClient) Create(ctx context.Context, params Params) (*stripe.Invoice, error) {
	out := &stripe.Invoice{}
	if err := c.s.post(ctx, "invoices.create", "/v1/invoices", params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InvoicesClient) Get(ctx context.Context, id string, params Params) (*stripe.Invoice, error) {
	path, err := resourcePath("invoices.get", "/v1/invoices", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Invoice{}
	if err := c.s.get(ctx, "invoices.get", path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InvoicesClient) Update(ctx context.Context, id string, params Params) (*stripe.Invoice, error) {
	return c.action(ctx, "invoices.update", id, "", params)
}

// Delete removes a draft invoice. Finalized invoices must be voided instead.
func (c *InvoicesClient) Delete(ctx context.Context, id string) (*stripe.Invoice, error) {
	path, err := resourcePath("invoices.delete", "/v1/invoices", id)
	if err != nil {
		return nil, err
	}
	out := &stripe.Invoice{}
	if err := c.s.del(ctx, "invoices.delete", path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InvoicesClient) List(ctx context.Context, lp ListParams) (*stripe.InvoiceList, error) {
	out := &stripe.InvoiceList{}
	if err := c.s.get(ctx, "invoices.list", "/v1/invoices", lp.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Finalize moves a draft invoice to open.
func (c *InvoicesClient) Finalize(ctx context.Context, id string, params Params) (*stripe.Invoice, error) {
	return c.action(ctx, "invoices.finalize", id, "finalize", params)
}

// Pay attempts payment out of band of the normal collection schedule.
func (c *InvoicesClient) Pay(ctx context.Context, id string, params Params) (*stripe.Invoice, error) {
	return c.action(ctx, "invoices.pay", id, "pay", params)
}

// Send emails the invoice to the customer.
func (c *InvoicesClient) Send(ctx context.Context, id string, params Params) (*stripe.Invoice, error) {
	return c.action(ctx, "invoices.send", id, "send", params)
}

func (c *InvoicesClient) Void(ctx context.Context, id string, params Params) (*stripe.Invoice, error) {
	return c.action(ctx, "invoices.void", id, "void", params)
}

func (c *InvoicesClient) MarkUncollectible(ctx context.Context, id string, params Params) (*stripe.Invoice, error) {
	return c.action(ctx, "invoices.mark_uncollectible", id, "mark_uncollectible", params)
}

// ListLines pages through the line items of an existing invoice.
func (c *InvoicesClient) ListLines(ctx context.Context, id string, lp ListParams) (*stripe.InvoiceLineItemList, error) {
	path, err := resourcePath("invoices.list_lines", "/v1/invoices", id, "lines")
	if err != nil {
		return nil, err
	}
	out := &stripe.InvoiceLineItemList{}
	if err := c.s.get(ctx, "invoices.list_lines", path, lp.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Preview returns the invoice the customer would receive next, without
// creating it.
func (c *InvoicesClient) Preview(ctx context.Context, customerID string, params Params) (*stripe.Invoice, error) {
	values, err := previewValues("invoices.preview", customerID, params)
	if err != nil {
		return nil, err
	}
	out := &stripe.Invoice{}
	if err := c.s.post(ctx, "invoices.preview", "/v1/invoices/create_preview", values, out); err != nil {
		return nil, err
	}
	return out, nil
}

// PreviewLines returns the first page of the previewed invoice's lines,
// limited to limit entries when limit is positive.
func (c *InvoicesClient) PreviewLines(ctx context.Context, customerID string, limit int64) (*stripe.InvoiceLineItemList, error) {
	invoice, err := c.Preview(ctx, customerID, nil)
	if err != nil {
		return nil, err
	}
	lines := invoice.Lines
	if lines == nil {
		lines = &stripe.InvoiceLineItemList{}
	}
	if limit > 0 && int64(len(lines.Data)) > limit {
		lines.Data = lines.Data[:limit]
		lines.HasMore = true
	}
	return lines, nil
}

// action posts to /v1/invoices/{id} or /v1/invoices/{id}/{verb}.
func (c *InvoicesClient) action(ctx context.Context, operation, id, verb string, params Params) (*stripe.Invoice, error) {
	var suffix []string
	if verb != "" {
		suffix = []string{verb}
	}
	path, err := resourcePath(operation, "/v1/invoices", id, suffix...)
	if err != nil {
		return nil, err
	}
	out := &stripe.Invoice{}
	if err := c.s.post(ctx, operation, path, params.Encode(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func previewValues(operation, customerID string, params Params) (url.Values, error) {
	if customerID == "" {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			operation+": customer is required",
			nil,
			map[string]any{"field": "customer"},
		)
	}
	values := params.Encode()
	values.Set("customer", customerID)
	return values, nil
}
