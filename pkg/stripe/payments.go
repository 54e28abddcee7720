package stripe

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"
)

// paymentIntentPageSize is the page size used when walking a customer's intents.
const paymentIntentPageSize = 100

func (c *Client) paymentIntents() *paymentintent.Client {
	return &paymentintent.Client{B: c.backend, Key: c.key}
}

func (c *Client) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (pi *stripe.PaymentIntent, err error) {
	defer func(start time.Time) { c.observe("payment_intent.create", start, err) }(time.Now())
	params.Context = ctx
	applyIdempotencyKey(ctx, &params.Params, "payment_intent.create")
	return c.paymentIntents().New(params)
}

// GetPaymentIntent retrieves an intent. expand lists fields to expand, e.g. latest_charge.
func (c *Client) GetPaymentIntent(ctx context.Context, id string, expand ...string) (pi *stripe.PaymentIntent, err error) {
	defer func(start time.Time) { c.observe("payment_intent.retrieve", start, err) }(time.Now())
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	for _, field := range expand {
		params.AddExpand(field)
	}
	return c.paymentIntents().Get(id, params)
}

// ListCustomerPaymentIntents walks every page of the customer's payment intents.
func (c *Client) ListCustomerPaymentIntents(ctx context.Context, customerID string) (intents []*stripe.PaymentIntent, err error) {
	defer func(start time.Time) { c.observe("payment_intent.list", start, err) }(time.Now())
	params := &stripe.PaymentIntentListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(paymentIntentPageSize)

	iter := c.paymentIntents().List(params)
	for iter.Next() {
		intents = append(intents, iter.PaymentIntent())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return intents, nil
}

func (c *Client) CreateRefund(ctx context.Context, params *stripe.RefundParams) (r *stripe.Refund, err error) {
	defer func(start time.Time) { c.observe("refund.create", start, err) }(time.Now())
	params.Context = ctx
	applyIdempotencyKey(ctx, &params.Params, "refund.create")
	client := &refund.Client{B: c.backend, Key: c.key}
	return client.New(params)
}
