package stripe

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/price"
	"github.com/stripe/stripe-go/v84/product"
	"github.com/stripe/stripe-go/v84/transfer"
)

func (c *Client) CreateProduct(ctx context.Context, params *stripe.ProductParams) (p *stripe.Product, err error) {
	defer func(start time.Time) { c.observe("product.create", start, err) }(time.Now())
	params.Context = ctx
	client := &product.Client{B: c.backend, Key: c.key}
	return client.New(params)
}

func (c *Client) CreatePrice(ctx context.Context, params *stripe.PriceParams) (p *stripe.Price, err error) {
	defer func(start time.Time) { c.observe("price.create", start, err) }(time.Now())
	params.Context = ctx
	client := &price.Client{B: c.backend, Key: c.key}
	return client.New(params)
}

// CreateTransfer moves platform funds to a connected account.
func (c *Client) CreateTransfer(ctx context.Context, params *stripe.TransferParams) (t *stripe.Transfer, err error) {
	defer func(start time.Time) { c.observe("transfer.create", start, err) }(time.Now())
	params.Context = ctx
	applyIdempotencyKey(ctx, &params.Params, "transfer.create")
	client := &transfer.Client{B: c.backend, Key: c.key}
	return client.New(params)
}
