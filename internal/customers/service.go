package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/flakex/marketplace-billing/internal/users"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	pkgstripe "github.com/flakex/marketplace-billing/pkg/stripe"
)

type gateway interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	GetCustomer(ctx context.Context, id string) (*stripe.Customer, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*stripe.PaymentMethod, error)
	GetCashBalance(ctx context.Context, customerID string) (*stripe.CashBalance, error)
	ListCustomerPaymentIntents(ctx context.Context, customerID string) ([]*stripe.PaymentIntent, error)
	CreateSetupIntent(ctx context.Context, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error)
}

type billingRefsStore interface {
	UpsertBillingRefs(ctx context.Context, userID uuid.UUID, refs users.BillingRefs) error
}

// Service manages gateway customers and their payment methods.
type Service interface {
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (string, error)
	GetOrCreateByExternalID(ctx context.Context, input ResolveCustomerInput) (Resolution, error)
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*stripe.PaymentMethod, error)
	GetBalance(ctx context.Context, customerID string) (Balance, error)
	CreateSetupIntent(ctx context.Context, customerID string) (string, error)
}

// ServiceParams groups dependencies for the customer service.
type ServiceParams struct {
	Gateway     gateway
	BillingRefs billingRefsStore
}

// CreateCustomerInput describes the platform user a customer is created for.
type CreateCustomerInput struct {
	UserID      uuid.UUID
	Email       string
	Name        string
	Description string
}

// ResolveCustomerInput carries the stored customer id, possibly empty or stale.
type ResolveCustomerInput struct {
	UserID     uuid.UUID
	CustomerID string
	Email      string
	Name       string
}

// Resolution reports which customer id to use and whether it already existed.
type Resolution struct {
	CustomerID string `json:"customer_id"`
	Existed    bool   `json:"existed"`
}

type service struct {
	gateway gateway
	refs    billingRefsStore
}

// NewService builds a customer service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	if params.BillingRefs == nil {
		return nil, fmt.Errorf("billing refs store required")
	}
	return &service{gateway: params.Gateway, refs: params.BillingRefs}, nil
}

// CreateCustomer creates a gateway customer and records its id against the user.
func (s *service) CreateCustomer(ctx context.Context, input CreateCustomerInput) (string, error) {
	if input.UserID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)
	if email == "" && name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email or name is required")
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = email
	}
	if description == "" {
		description = name + " description"
	}

	params := &stripe.CustomerParams{Description: stripe.String(description)}
	if email != "" {
		params.Email = stripe.String(email)
	}
	if name != "" {
		params.Name = stripe.String(name)
	}

	cus, err := s.gateway.CreateCustomer(ctx, params)
	if err != nil {
		return "", pkgstripe.Classify(err, "create customer")
	}
	if err := s.refs.UpsertBillingRefs(ctx, input.UserID, users.CustomerRef(cus.ID)); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record customer").
			WithDetails(map[string]string{"customer_id": cus.ID})
	}
	return cus.ID, nil
}

// GetOrCreateByExternalID returns the stored customer when the gateway still
// knows it and creates a replacement otherwise. Concurrent calls for the same
// user may both create; nothing here serializes them.
func (s *service) GetOrCreateByExternalID(ctx context.Context, input ResolveCustomerInput) (Resolution, error) {
	customerID := strings.TrimSpace(input.CustomerID)
	if customerID != "" {
		cus, err := s.gateway.GetCustomer(ctx, customerID)
		switch {
		case err == nil && !cus.Deleted:
			return Resolution{CustomerID: cus.ID, Existed: true}, nil
		case err != nil && !pkgstripe.IsResourceMissing(err):
			return Resolution{}, pkgstripe.Classify(err, "retrieve customer")
		}
	}

	id, err := s.CreateCustomer(ctx, CreateCustomerInput{
		UserID: input.UserID,
		Email:  input.Email,
		Name:   input.Name,
	})
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{CustomerID: id, Existed: false}, nil
}

// AttachPaymentMethod attaches the payment method to the customer. Attaching
// the same method twice is accepted by the gateway and is not an error here.
func (s *service) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*stripe.PaymentMethod, error) {
	customerID = strings.TrimSpace(customerID)
	paymentMethodID = strings.TrimSpace(paymentMethodID)
	if customerID == "" || paymentMethodID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and payment method id are required")
	}
	pm, err := s.gateway.AttachPaymentMethod(ctx, paymentMethodID, customerID)
	if err != nil {
		return nil, pkgstripe.Classify(err, "attach payment method")
	}
	return pm, nil
}

// CreateSetupIntent starts saving a payment method for later use and returns
// the client secret the frontend confirms with.
func (s *service) CreateSetupIntent(ctx context.Context, customerID string) (string, error) {
	params := &stripe.SetupIntentParams{
		AutomaticPaymentMethods: &stripe.SetupIntentAutomaticPaymentMethodsParams{Enabled: stripe.Bool(true)},
	}
	if id := strings.TrimSpace(customerID); id != "" {
		params.Customer = stripe.String(id)
	}
	si, err := s.gateway.CreateSetupIntent(ctx, params)
	if err != nil {
		return "", pkgstripe.Classify(err, "create setup intent")
	}
	if si.ClientSecret == "" {
		return "", pkgerrors.New(pkgerrors.CodeGateway, "setup intent has no client secret").
			WithDetails(map[string]string{"setup_intent_id": si.ID})
	}
	return si.ClientSecret, nil
}
