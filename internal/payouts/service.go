package payouts

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
	CreateTransfer(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error)
}

// Service moves platform funds to hosts' connected accounts.
type Service interface {
	SendToHost(ctx context.Context, input SendInput) (*Transfer, error)
}

// ServiceParams groups dependencies for the payout service.
type ServiceParams struct {
	Gateway gateway
}

// SendInput describes a transfer. Amount is in major units.
type SendInput struct {
	AccountID string
	Amount    decimal.Decimal
	Currency  string
}

type Transfer struct {
	ID          string `json:"id"`
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

type service struct {
	gateway gateway
}

// NewService builds a payout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	return &service{gateway: params.Gateway}, nil
}

func (s *service) SendToHost(ctx context.Context, input SendInput) (*Transfer, error) {
	accountID := strings.TrimSpace(input.AccountID)
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	minor, err := currency.ToMinorUnits(input.Amount, input.Currency)
	if err != nil {
		return nil, err
	}
	cur := strings.ToLower(currency.Normalize(input.Currency))

	tr, err := s.gateway.CreateTransfer(ctx, &stripe.TransferParams{
		Amount:      stripe.Int64(minor),
		Currency:    stripe.String(cur),
		Destination: stripe.String(accountID),
	})
	if err != nil {
		return nil, pkgstripe.Classify(err, "transfer to host failed")
	}
	return &Transfer{ID: tr.ID, Destination: accountID, Amount: tr.Amount, Currency: cur}, nil
}
