package stripe

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/balance"
)

func (c *Client) accounts() *account.Client {
	return &account.Client{B: c.backend, Key: c.key}
}

// CreateAccount creates a connected account.
func (c *Client) CreateAccount(ctx context.Context, params *stripe.AccountParams) (acct *stripe.Account, err error) {
	defer func(start time.Time) { c.observe("account.create", start, err) }(time.Now())
	params.Context = ctx
	return c.accounts().New(params)
}

// GetAccount retrieves a connected account by id.
func (c *Client) GetAccount(ctx context.Context, id string) (acct *stripe.Account, err error) {
	defer func(start time.Time) { c.observe("account.retrieve", start, err) }(time.Now())
	params := &stripe.AccountParams{}
	params.Context = ctx
	return c.accounts().GetByID(id, params)
}

// CreateAccountLink creates a hosted onboarding link for a connected account.
func (c *Client) CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (link *stripe.AccountLink, err error) {
	defer func(start time.Time) { c.observe("account_link.create", start, err) }(time.Now())
	params.Context = ctx
	client := &accountlink.Client{B: c.backend, Key: c.key}
	return client.New(params)
}

// GetConnectedBalance retrieves the balance of a connected account by sending
// the Stripe-Account header.
func (c *Client) GetConnectedBalance(ctx context.Context, accountID string) (bal *stripe.Balance, err error) {
	defer func(start time.Time) { c.observe("balance.retrieve", start, err) }(time.Now())
	params := &stripe.BalanceParams{}
	params.Context = ctx
	params.SetStripeAccount(accountID)
	client := &balance.Client{B: c.backend, Key: c.key}
	return client.Get(params)
}
