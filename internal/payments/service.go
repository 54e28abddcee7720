package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/flakex/marketplace-billing/internal/currency"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	pkgstripe "github.com/flakex/marketplace-billing/pkg/stripe"
)

type gateway interface {
	GetAccount(ctx context.Context, id string) (*stripe.Account, error)
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Service charges customers on behalf of hosts.
type Service interface {
	Charge(ctx context.Context, input ChargeInput) (*Payment, error)
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Gateway   gateway
	ReturnURL string
	// RouteToHost sends the captured funds to the host's connected account.
	RouteToHost bool
}

// ChargeInput describes a one-shot charge. Amount is in major units.
type ChargeInput struct {
	Amount          decimal.Decimal
	Currency        string
	CustomerID      string
	PaymentMethodID string
	HostAccountID   string
}

// Payment is the caller-facing view of a confirmed payment intent.
type Payment struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	AmountReceived int64  `json:"amount_received"`
	Currency       string `json:"currency"`
	ClientSecret   string `json:"client_secret,omitempty"`
	RequiresAction bool   `json:"requires_action"`
}

type service struct {
	gateway     gateway
	returnURL   string
	routeToHost bool
}

// NewService builds a payment service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	if strings.TrimSpace(params.ReturnURL) == "" {
		return nil, fmt.Errorf("payment return url required")
	}
	return &service{
		gateway:     params.Gateway,
		returnURL:   strings.TrimSpace(params.ReturnURL),
		routeToHost: params.RouteToHost,
	}, nil
}

// Charge creates and synchronously confirms a payment intent. Input is
// validated before any gateway call and failures are never retried.
func (s *service) Charge(ctx context.Context, input ChargeInput) (*Payment, error) {
	customerID := strings.TrimSpace(input.CustomerID)
	paymentMethodID := strings.TrimSpace(input.PaymentMethodID)
	hostAccountID := strings.TrimSpace(input.HostAccountID)
	if customerID == "" || paymentMethodID == "" || hostAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer, payment method and host account are required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	minor, err := currency.ToMinorUnits(input.Amount, input.Currency)
	if err != nil {
		return nil, err
	}

	if _, err := s.gateway.GetAccount(ctx, hostAccountID); err != nil {
		return nil, pkgstripe.ClassifyLookup(err, "host account")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(minor),
		Currency:      stripe.String(strings.ToLower(currency.Normalize(input.Currency))),
		Customer:      stripe.String(customerID),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
		ReturnURL:     stripe.String(s.returnURL),
	}
	if s.routeToHost {
		params.TransferData = &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(hostAccountID),
		}
	}

	pi, err := s.gateway.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, pkgstripe.Classify(err, "payment processing failed")
	}
	return &Payment{
		ID:             pi.ID,
		Status:         string(pi.Status),
		Amount:         pi.Amount,
		AmountReceived: pi.AmountReceived,
		Currency:       string(pi.Currency),
		ClientSecret:   pi.ClientSecret,
		RequiresAction: pi.Status == stripe.PaymentIntentStatusRequiresAction,
	}, nil
}
