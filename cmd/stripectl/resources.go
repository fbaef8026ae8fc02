package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"

	"stripefacility/internal/external"
	"stripefacility/internal/types"
)

// opInput is the parsed flag set shared by every resource operation.
type opInput struct {
	ID       string
	Params   external.Params
	List     external.ListParams
	Status   string
	Customer string
}

type operation func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error)

// resources maps resource name -> operation name -> call.
var resources = map[string]map[string]operation{
	"customers": {
		"create": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Customers.Create(ctx, in.Params)
		},
		"get": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Customers.Get(ctx, in.ID, in.Params)
		},
		"update": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Customers.Update(ctx, in.ID, in.Params)
		},
		"delete": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Customers.Delete(ctx, in.ID)
		},
		"list": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Customers.List(ctx, in.List)
		},
	},
	"products": {
		"create": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Products.Create(ctx, in.Params)
		},
		"get": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Products.Get(ctx, in.ID, in.Params)
		},
		"update": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Products.Update(ctx, in.ID, in.Params)
		},
		"delete": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Products.Delete(ctx, in.ID)
		},
		"list": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Products.List(ctx, in.List)
		},
	},
	"subscriptions": {
		"create": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Subscriptions.Create(ctx, in.Params)
		},
		"get": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Subscriptions.Get(ctx, in.ID, in.Params)
		},
		"update": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Subscriptions.Update(ctx, in.ID, in.Params)
		},
		"cancel": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Subscriptions.Cancel(ctx, in.ID, in.Params)
		},
		"list": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Subscriptions.List(ctx, stripe.SubscriptionStatus(in.Status), in.List)
		},
	},
	"invoices": {
		"create": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.Create(ctx, in.Params)
		},
		"get": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.Get(ctx, in.ID, in.Params)
		},
		"update": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.Update(ctx, in.ID, in.Params)
		},
		"delete": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.Delete(ctx, in.ID)
		},
		"list": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.List(ctx, in.List)
		},
		"finalize": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.Finalize(ctx, in.ID, in.Params)
		},
		"pay": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.Pay(ctx, in.ID, in.Params)
		},
		"send": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.Send(ctx, in.ID, in.Params)
		},
		"void": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.Void(ctx, in.ID, in.Params)
		},
		"mark-uncollectible": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.MarkUncollectible(ctx, in.ID, in.Params)
		},
		"lines": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.ListLines(ctx, in.ID, in.List)
		},
		"preview": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.Preview(ctx, in.Customer, in.Params)
		},
		"preview-lines": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.Invoices.PreviewLines(ctx, in.Customer, in.List.Limit)
		},
	},
	"invoiceitems": {
		"create": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.InvoiceItems.Create(ctx, in.Params)
		},
		"get": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.InvoiceItems.Get(ctx, in.ID, in.Params)
		},
		"update": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.InvoiceItems.Update(ctx, in.ID, in.Params)
		},
		"delete": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.InvoiceItems.Delete(ctx, in.ID)
		},
		"list": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.InvoiceItems.List(ctx, in.List)
		},
	},
	"checkout": {
		"create": func(ctx context.Context, sc *external.StripeClient, in opInput) (any, error) {
			return sc.CheckoutSessions.Create(ctx, in.Params)
		},
	},
}

func resourceNames() []string {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func operationNames(resource string) []string {
	ops := make([]string, 0, len(resources[resource]))
	for op := range resources[resource] {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func joinOperations(resource string) string {
	return strings.Join(operationNames(resource), ", ")
}

// paramFlag collects repeated --param key=value pairs. Bracketed keys such
// as metadata[org] or items[0][price] are passed through as-is.
type paramFlag external.Params

func (p paramFlag) String() string { return "" }

func (p paramFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	p[key] = value
	return nil
}

func (c *cli) runResource(ctx context.Context, resource string, args []string) int {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintf(c.stderr, "error: %s requires an operation (%s)\n", resource, joinOperations(resource))
		return exitUsage
	}
	opName, args := args[0], args[1:]
	op, ok := resources[resource][opName]
	if !ok {
		fmt.Fprintf(c.stderr, "error: unknown %s operation %q (%s)\n", resource, opName, joinOperations(resource))
		return exitUsage
	}

	params := paramFlag{}
	fs := flag.NewFlagSet(resource+" "+opName, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	id := fs.String("id", "", "Resource ID")
	fs.Var(params, "param", "Request parameter key=value (repeatable)")
	limit := fs.Int64("limit", 0, "Page size for list operations (default: Stripe's)")
	startingAfter := fs.String("starting-after", "", "Pagination cursor for list operations")
	endingBefore := fs.String("ending-before", "", "Reverse pagination cursor for list operations")
	status := fs.String("status", "", "Subscription status filter (subscriptions list)")
	customer := fs.String("customer", "", "Customer ID (invoices preview, preview-lines)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	in := opInput{
		ID:     *id,
		Params: external.Params(params),
		List: external.ListParams{
			Limit:         *limit,
			StartingAfter: *startingAfter,
			EndingBefore:  *endingBefore,
			Filters:       external.Params(params),
		},
		Status:   *status,
		Customer: *customer,
	}

	cfg, err := c.loadConfig()
	if err != nil {
		fmt.Fprintf(c.stderr, "error: loading configuration: %v\n", err)
		return exitError
	}

	sc, err := external.NewStripeClient(c.httpClient, external.StripeClientConfig{
		SecretKey: cfg.Billing.ActiveSecretKey(),
		BaseURL:   cfg.Billing.APIBaseURL,
	})
	if err != nil {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return exitError
	}

	result, err := op(ctx, sc, in)
	if err != nil {
		c.printError(err)
		return exitError
	}

	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(c.stderr, "error: encoding result: %v\n", err)
		return exitError
	}
	return exitOK
}

// printError reports the provider status and code when the failure came
// from Stripe.
func (c *cli) printError(err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return
	}

	fmt.Fprintf(c.stderr, "error [%s]: %s\n", appErr.Code, appErr.Message)

	var stripeErr *external.StripeError
	if errors.As(err, &stripeErr) {
		fmt.Fprintf(c.stderr, "  status: %d\n", stripeErr.HTTPStatus)
		if stripeErr.Code != "" {
			fmt.Fprintf(c.stderr, "  stripe code: %s\n", stripeErr.Code)
		}
		if stripeErr.DeclineCode != "" {
			fmt.Fprintf(c.stderr, "  decline code: %s\n", stripeErr.DeclineCode)
		}
		if stripeErr.Param != "" {
			fmt.Fprintf(c.stderr, "  param: %s\n", stripeErr.Param)
		}
		if stripeErr.RequestID != "" {
			fmt.Fprintf(c.stderr, "  request id: %s\n", stripeErr.RequestID)
		}
	}
}
