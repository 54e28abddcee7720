package balances

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
	GetConnectedBalance(ctx context.Context, accountID string) (*stripe.Balance, error)
}

// Service reports funds held for hosts' connected accounts.
type Service interface {
	GetHostBalance(ctx context.Context, accountID string) (*HostBalance, error)
}

// ServiceParams groups dependencies for the balance service.
type ServiceParams struct {
	Gateway gateway
}

// HostBalance sums every currency into AvailableFunds and PendingFunds, in
// minor units, which is only meaningful for single-currency hosts.
// ByCurrency keeps the unmixed figures.
type HostBalance struct {
	AccountID      string                   `json:"account_id"`
	AvailableFunds int64                    `json:"available_funds"`
	PendingFunds   int64                    `json:"pending_funds"`
	ByCurrency     map[string]CurrencyFunds `json:"by_currency"`
}

// CurrencyFunds is the available and pending amount in one currency. The
// *Amount fields are major units and stay null for currencies the converter
// does not support.
type CurrencyFunds struct {
	Available       int64               `json:"available"`
	Pending         int64               `json:"pending"`
	AvailableAmount decimal.NullDecimal `json:"available_amount"`
	PendingAmount   decimal.NullDecimal `json:"pending_amount"`
}

type service struct {
	gateway gateway
}

// NewService builds a balance service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	return &service{gateway: params.Gateway}, nil
}

func (s *service) GetHostBalance(ctx context.Context, accountID string) (*HostBalance, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	bal, err := s.gateway.GetConnectedBalance(ctx, accountID)
	if err != nil {
		return nil, pkgstripe.ClassifyLookup(err, "host balance")
	}

	out := &HostBalance{AccountID: accountID, ByCurrency: map[string]CurrencyFunds{}}
	for _, fund := range bal.Available {
		out.AvailableFunds += fund.Amount
		cur := string(fund.Currency)
		entry := out.ByCurrency[cur]
		entry.Available += fund.Amount
		out.ByCurrency[cur] = entry
	}
	for _, fund := range bal.Pending {
		out.PendingFunds += fund.Amount
		cur := string(fund.Currency)
		entry := out.ByCurrency[cur]
		entry.Pending += fund.Amount
		out.ByCurrency[cur] = entry
	}
	for cur, entry := range out.ByCurrency {
		out.ByCurrency[cur] = withMajorUnits(cur, entry)
	}
	return out, nil
}

func withMajorUnits(code string, funds CurrencyFunds) CurrencyFunds {
	if available, err := currency.FromMinorUnits(funds.Available, code); err == nil {
		funds.AvailableAmount = decimal.NewNullDecimal(available)
	}
	if pending, err := currency.FromMinorUnits(funds.Pending, code); err == nil {
		funds.PendingAmount = decimal.NewNullDecimal(pending)
	}
	return funds
}
