package stripe

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/invoice"
	"github.com/stripe/stripe-go/v84/subscription"
)

func (c *Client) subscriptions() *subscription.Client {
	return &subscription.Client{B: c.backend, Key: c.key}
}

func (c *Client) CreateSubscription(ctx context.Context, params *stripe.SubscriptionParams) (sub *stripe.Subscription, err error) {
	defer func(start time.Time) { c.observe("subscription.create", start, err) }(time.Now())
	params.Context = ctx
	return c.subscriptions().New(params)
}

// GetSubscription retrieves a subscription. expand lists fields to expand.
func (c *Client) GetSubscription(ctx context.Context, id string, expand ...string) (sub *stripe.Subscription, err error) {
	defer func(start time.Time) { c.observe("subscription.retrieve", start, err) }(time.Now())
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	for _, field := range expand {
		params.AddExpand(field)
	}
	return c.subscriptions().Get(id, params)
}

func (c *Client) UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (sub *stripe.Subscription, err error) {
	defer func(start time.Time) { c.observe("subscription.update", start, err) }(time.Now())
	params.Context = ctx
	return c.subscriptions().Update(id, params)
}

// LatestInvoiceForSubscription returns the newest invoice of the subscription
// with its payments expanded, or nil when the subscription has none.
func (c *Client) LatestInvoiceForSubscription(ctx context.Context, subscriptionID string) (inv *stripe.Invoice, err error) {
	defer func(start time.Time) { c.observe("invoice.list", start, err) }(time.Now())
	params := &stripe.InvoiceListParams{Subscription: stripe.String(subscriptionID)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true
	params.AddExpand("data.payments")

	client := &invoice.Client{B: c.backend, Key: c.key}
	iter := client.List(params)
	if iter.Next() {
		inv = iter.Invoice()
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return inv, nil
}
