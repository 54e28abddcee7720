package stripe

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/cashbalance"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/paymentmethod"
	"github.com/stripe/stripe-go/v84/setupintent"
)

func (c *Client) customers() *customer.Client {
	return &customer.Client{B: c.backend, Key: c.key}
}

func (c *Client) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (cus *stripe.Customer, err error) {
	defer func(start time.Time) { c.observe("customer.create", start, err) }(time.Now())
	params.Context = ctx
	return c.customers().New(params)
}

func (c *Client) GetCustomer(ctx context.Context, id string) (cus *stripe.Customer, err error) {
	defer func(start time.Time) { c.observe("customer.retrieve", start, err) }(time.Now())
	params := &stripe.CustomerParams{}
	params.Context = ctx
	return c.customers().Get(id, params)
}

func (c *Client) UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (cus *stripe.Customer, err error) {
	defer func(start time.Time) { c.observe("customer.update", start, err) }(time.Now())
	params.Context = ctx
	return c.customers().Update(id, params)
}

// GetCashBalance retrieves the cash balance held for a customer.
func (c *Client) GetCashBalance(ctx context.Context, customerID string) (cb *stripe.CashBalance, err error) {
	defer func(start time.Time) { c.observe("cash_balance.retrieve", start, err) }(time.Now())
	params := &stripe.CashBalanceParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	client := &cashbalance.Client{B: c.backend, Key: c.key}
	return client.Get(params)
}

// AttachPaymentMethod attaches the payment method to the customer. The gateway
// treats a repeated attach to the same customer as a no-op.
func (c *Client) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (pm *stripe.PaymentMethod, err error) {
	defer func(start time.Time) { c.observe("payment_method.attach", start, err) }(time.Now())
	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	client := &paymentmethod.Client{B: c.backend, Key: c.key}
	return client.Attach(paymentMethodID, params)
}

func (c *Client) CreateSetupIntent(ctx context.Context, params *stripe.SetupIntentParams) (si *stripe.SetupIntent, err error) {
	defer func(start time.Time) { c.observe("setup_intent.create", start, err) }(time.Now())
	params.Context = ctx
	client := &setupintent.Client{B: c.backend, Key: c.key}
	return client.New(params)
}
