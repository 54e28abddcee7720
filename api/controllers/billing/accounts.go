package billing

import (
	"net/http"

	"github.com/flakex/marketplace-billing/api/responses"
	"github.com/flakex/marketplace-billing/api/validators"
	"github.com/flakex/marketplace-billing/internal/accounts"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

type createAccountRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Country string `json:"country" validate:"required,len=2"`
}

// CreateAccount provisions a connected account for the calling host.
func CreateAccount(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req createAccountRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		account, err := svc.CreateAccount(ctx, accounts.CreateAccountInput{
			UserID:  userID,
			Email:   req.Email,
			Country: req.Country,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, account)
	}
}

func CreateOnboardingLink(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accountID, err := pathParam(r, "accountID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		url, err := svc.CreateOnboardingLink(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"url": url})
	}
}

func GetAccount(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accountID, err := pathParam(r, "accountID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		account, err := svc.GetAccount(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}
