package billing

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/flakex/marketplace-billing/api/responses"
	"github.com/flakex/marketplace-billing/api/validators"
	"github.com/flakex/marketplace-billing/internal/payments"
	"github.com/flakex/marketplace-billing/internal/refunds"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

type chargeRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"required,currency"`
	CustomerID      string          `json:"customer_id" validate:"required,stripe_id=cus"`
	PaymentMethodID string          `json:"payment_method_id" validate:"required,stripe_id=pm"`
	HostAccountID   string          `json:"host_account_id"`
}

// CreateCharge confirms a one-off payment. Amount is in major units of the currency.
// Members may only charge their own customer.
func CreateCharge(svc payments.Service, refs BillingRefsReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req chargeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := authorizeCustomer(r, refs, req.CustomerID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		payment, err := svc.Charge(ctx, payments.ChargeInput{
			Amount:          req.Amount,
			Currency:        req.Currency,
			CustomerID:      req.CustomerID,
			PaymentMethodID: req.PaymentMethodID,
			HostAccountID:   req.HostAccountID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

func RefundPaymentIntent(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		paymentIntentID, err := pathParam(r, "paymentIntentID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		refund, err := svc.RefundPaymentIntent(ctx, paymentIntentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, refund)
	}
}

func RefundSubscription(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		subscriptionID, err := pathParam(r, "subscriptionID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		refund, err := svc.RefundSubscriptionLatestInvoice(ctx, subscriptionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, refund)
	}
}
