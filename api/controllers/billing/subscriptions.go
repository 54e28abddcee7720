package billing

import (
	"net/http"

	"github.com/flakex/marketplace-billing/api/responses"
	"github.com/flakex/marketplace-billing/api/validators"
	"github.com/flakex/marketplace-billing/internal/subscriptions"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

type createSubscriptionRequest struct {
	CustomerID      string `json:"customer_id" validate:"required,stripe_id=cus"`
	PriceID         string `json:"price_id" validate:"required,stripe_id=price"`
	PaymentMethodID string `json:"payment_method_id" validate:"required,stripe_id=pm"`
	HostAccountID   string `json:"host_account_id"`
}

func CreateSubscription(svc subscriptions.Service, refs BillingRefsReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req createSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := authorizeCustomer(r, refs, req.CustomerID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.Create(ctx, subscriptions.CreateSubscriptionInput{
			CustomerID:      req.CustomerID,
			PriceID:         req.PriceID,
			PaymentMethodID: req.PaymentMethodID,
			HostAccountID:   req.HostAccountID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func GetSubscription(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		subscriptionID, err := pathParam(r, "subscriptionID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		sub, err := svc.Get(ctx, subscriptionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

// CancelSubscription schedules cancellation at the end of the current period.
func CancelSubscription(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		subscriptionID, err := pathParam(r, "subscriptionID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		sub, err := svc.CancelAtPeriodEnd(ctx, subscriptionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}
