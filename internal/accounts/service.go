package accounts

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

const (
	onboardingLinkType = "account_onboarding"
	// Cross-border connected accounts can only receive transfers.
	recipientServiceAgreement = "recipient"
)

type gateway interface {
	CreateAccount(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error)
	GetAccount(ctx context.Context, id string) (*stripe.Account, error)
	CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
}

type billingRefsStore interface {
	UpsertBillingRefs(ctx context.Context, userID uuid.UUID, refs users.BillingRefs) error
}

// Service provisions connected accounts for hosts.
type Service interface {
	CreateAccount(ctx context.Context, input CreateAccountInput) (*Account, error)
	CreateOnboardingLink(ctx context.Context, accountID string) (string, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
}

// ServiceParams groups dependencies for the account service.
type ServiceParams struct {
	Gateway     gateway
	BillingRefs billingRefsStore
	HomeCountry string
	RefreshURL  string
	ReturnURL   string
}

// CreateAccountInput describes the host a connected account is opened for.
type CreateAccountInput struct {
	UserID  uuid.UUID
	Email   string
	Country string
}

type service struct {
	gateway     gateway
	refs        billingRefsStore
	homeCountry string
	refreshURL  string
	returnURL   string
}

// NewService builds an account service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	if params.BillingRefs == nil {
		return nil, fmt.Errorf("billing refs store required")
	}
	if strings.TrimSpace(params.RefreshURL) == "" || strings.TrimSpace(params.ReturnURL) == "" {
		return nil, fmt.Errorf("onboarding refresh and return urls required")
	}
	home := strings.ToUpper(strings.TrimSpace(params.HomeCountry))
	if home == "" {
		home = "US"
	}
	return &service{
		gateway:     params.Gateway,
		refs:        params.BillingRefs,
		homeCountry: home,
		refreshURL:  strings.TrimSpace(params.RefreshURL),
		returnURL:   strings.TrimSpace(params.ReturnURL),
	}, nil
}

// CreateAccount opens an express account that can receive transfers but not
// take card payments, then records its id against the user.
func (s *service) CreateAccount(ctx context.Context, input CreateAccountInput) (*Account, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	country := strings.ToUpper(strings.TrimSpace(input.Country))
	if len(country) != 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "country must be a two-letter code")
	}

	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(country),
		Email:   stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(false)},
		},
	}
	if country != s.homeCountry {
		params.TOSAcceptance = &stripe.AccountTOSAcceptanceParams{
			ServiceAgreement: stripe.String(recipientServiceAgreement),
		}
	}

	acct, err := s.gateway.CreateAccount(ctx, params)
	if err != nil {
		return nil, pkgstripe.Classify(err, "create connected account")
	}

	if err := s.refs.UpsertBillingRefs(ctx, input.UserID, users.AccountRef(acct.ID)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record connected account").
			WithDetails(map[string]string{"account_id": acct.ID})
	}
	return accountFromStripe(acct), nil
}

// CreateOnboardingLink returns a hosted onboarding url for the account.
func (s *service) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	link, err := s.gateway.CreateAccountLink(ctx, &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(s.refreshURL),
		ReturnURL:  stripe.String(s.returnURL),
		Type:       stripe.String(onboardingLinkType),
	})
	if err != nil {
		return "", pkgstripe.Classify(err, "create onboarding link")
	}
	return link.URL, nil
}

// GetAccount retrieves the account; an unknown id is reported as NotFound.
func (s *service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	acct, err := s.gateway.GetAccount(ctx, accountID)
	if err != nil {
		return nil, pkgstripe.ClassifyLookup(err, "connected account")
	}
	return accountFromStripe(acct), nil
}
