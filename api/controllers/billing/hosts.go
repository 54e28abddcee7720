package billing

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/flakex/marketplace-billing/api/responses"
	"github.com/flakex/marketplace-billing/api/validators"
	"github.com/flakex/marketplace-billing/internal/balances"
	"github.com/flakex/marketplace-billing/internal/payouts"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

type payoutRequest struct {
	AccountID string          `json:"account_id" validate:"required,stripe_id=acct"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" validate:"required,currency"`
}

func HostBalance(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accountID, err := pathParam(r, "accountID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		balance, err := svc.GetHostBalance(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

func CreatePayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req payoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		transfer, err := svc.SendToHost(ctx, payouts.SendInput{
			AccountID: req.AccountID,
			Amount:    req.Amount,
			Currency:  req.Currency,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, transfer)
	}
}
