package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	pkgstripe "github.com/flakex/marketplace-billing/pkg/stripe"
)

// CancelAfter is how long a new subscription runs before its scheduled cancellation.
const CancelAfter = 30 * 24 * time.Hour

const expandConfirmationSecret = "latest_invoice.confirmation_secret"

type gateway interface {
	GetCustomer(ctx context.Context, id string) (*stripe.Customer, error)
	UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*stripe.PaymentMethod, error)
	CreateSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	GetSubscription(ctx context.Context, id string, expand ...string) (*stripe.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// Service defines the subscription lifecycle surface.
type Service interface {
	Create(ctx context.Context, input CreateSubscriptionInput) (*CreateResult, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error)
	Get(ctx context.Context, subscriptionID string) (*Subscription, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Gateway     gateway
	RouteToHost bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// CreateSubscriptionInput captures the data required to start a subscription.
type CreateSubscriptionInput struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	HostAccountID   string
}

// CreateResult carries the new subscription and the secret the frontend uses
// to confirm the first invoice. ClientSecret is empty when there is nothing to confirm.
type CreateResult struct {
	Subscription *Subscription `json:"subscription"`
	ClientSecret string        `json:"client_secret"`
}

type service struct {
	gateway     gateway
	routeToHost bool
	now         func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{gateway: params.Gateway, routeToHost: params.RouteToHost, now: now}, nil
}

// Create attaches the payment method, makes it the customer's invoice default
// and starts a subscription that cancels itself CancelAfter from now.
func (s *service) Create(ctx context.Context, input CreateSubscriptionInput) (*CreateResult, error) {
	customerID := strings.TrimSpace(input.CustomerID)
	priceID := strings.TrimSpace(input.PriceID)
	paymentMethodID := strings.TrimSpace(input.PaymentMethodID)
	if customerID == "" || priceID == "" || paymentMethodID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer, price and payment method are required")
	}
	hostAccountID := strings.TrimSpace(input.HostAccountID)
	if s.routeToHost && hostAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "host account is required")
	}

	if _, err := s.gateway.GetCustomer(ctx, customerID); err != nil {
		return nil, pkgstripe.ClassifyLookup(err, "customer")
	}
	if _, err := s.gateway.AttachPaymentMethod(ctx, paymentMethodID, customerID); err != nil {
		return nil, pkgstripe.Classify(err, "attach payment method")
	}
	if _, err := s.gateway.UpdateCustomer(ctx, customerID, &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}); err != nil {
		return nil, pkgstripe.Classify(err, "set default payment method")
	}

	params := &stripe.SubscriptionParams{
		Customer:             stripe.String(customerID),
		Items:                []*stripe.SubscriptionItemsParams{{Price: stripe.String(priceID)}},
		DefaultPaymentMethod: stripe.String(paymentMethodID),
		CancelAt:             stripe.Int64(s.now().Add(CancelAfter).Unix()),
	}
	if s.routeToHost {
		params.TransferData = &stripe.SubscriptionTransferDataParams{
			Destination: stripe.String(hostAccountID),
		}
	}
	params.AddExpand(expandConfirmationSecret)

	created, err := s.gateway.CreateSubscription(ctx, params)
	if err != nil {
		return nil, pkgstripe.Classify(err, "create subscription")
	}

	refreshed, err := s.gateway.GetSubscription(ctx, created.ID, expandConfirmationSecret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "retrieve created subscription").
			WithDetails(map[string]string{"subscription_id": created.ID})
	}

	return &CreateResult{
		Subscription: subscriptionFromStripe(refreshed),
		ClientSecret: confirmationSecret(refreshed),
	}, nil
}

// CancelAtPeriodEnd flags the subscription to end with the current period.
// A subscription already flagged is reported as a state conflict.
func (s *service) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}

	current, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, pkgstripe.ClassifyLookup(err, "subscription")
	}
	if current.CancelAtPeriodEnd {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription already scheduled to cancel at period end").
			WithDetails(map[string]string{"subscription_id": subscriptionID})
	}

	updated, err := s.gateway.UpdateSubscription(ctx, subscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, pkgstripe.Classify(err, "cancel subscription at period end")
	}
	return subscriptionFromStripe(updated), nil
}

// Get retrieves a subscription by id.
func (s *service) Get(ctx context.Context, subscriptionID string) (*Subscription, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	sub, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, pkgstripe.ClassifyLookup(err, "subscription")
	}
	return subscriptionFromStripe(sub), nil
}
