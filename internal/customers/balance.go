package customers

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	pkgstripe "github.com/flakex/marketplace-billing/pkg/stripe"
)

// Balance summarizes what a customer has paid and what is still in flight.
// Totals are in minor units and mix currencies when the customer paid in several.
type Balance struct {
	CustomerID          string           `json:"customer_id"`
	CashBalance         map[string]int64 `json:"cash_balance"`
	TotalAmountReceived int64            `json:"total_amount_received"`
	TotalPendingAmount  int64            `json:"total_pending_amount"`
}

// GetBalance walks every payment intent of the customer. Pending covers intents
// that are authorized but not captured, or still processing.
func (s *service) GetBalance(ctx context.Context, customerID string) (Balance, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return Balance{}, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	cash, err := s.gateway.GetCashBalance(ctx, customerID)
	if err != nil {
		return Balance{}, pkgstripe.ClassifyLookup(err, "customer cash balance")
	}
	intents, err := s.gateway.ListCustomerPaymentIntents(ctx, customerID)
	if err != nil {
		return Balance{}, pkgstripe.Classify(err, "list payment intents")
	}

	out := Balance{CustomerID: customerID, CashBalance: map[string]int64{}}
	if cash != nil {
		for cur, amount := range cash.Available {
			out.CashBalance[cur] = amount
		}
	}
	for _, pi := range intents {
		if pi == nil {
			continue
		}
		out.TotalAmountReceived += pi.AmountReceived
		switch pi.Status {
		case stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusProcessing:
			out.TotalPendingAmount += pi.Amount
		}
	}
	return out, nil
}
