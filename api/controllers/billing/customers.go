package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/flakex/marketplace-billing/api/responses"
	"github.com/flakex/marketplace-billing/api/validators"
	"github.com/flakex/marketplace-billing/internal/customers"
	"github.com/flakex/marketplace-billing/pkg/db/models"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

type BillingRefsReader interface {
	FindBillingRefs(ctx context.Context, userID uuid.UUID) (*models.UserBillingRef, error)
}

type resolveCustomerRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=200"`
}

type attachPaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required,stripe_id=pm"`
}

type setupIntentRequest struct {
	CustomerID string `json:"customer_id" validate:"omitempty,stripe_id=cus"`
}

// ResolveCustomer returns the caller's gateway customer, creating one when the
// stored reference is missing or no longer exists at the gateway.
func ResolveCustomer(svc customers.Service, refs BillingRefsReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req resolveCustomerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var storedID string
		stored, err := refs.FindBillingRefs(ctx, userID)
		switch {
		case err == nil:
			if stored.StripeCustomerID != nil {
				storedID = *stored.StripeCustomerID
			}
		case !pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resolution, err := svc.GetOrCreateByExternalID(ctx, customers.ResolveCustomerInput{
			UserID:     userID,
			CustomerID: storedID,
			Email:      req.Email,
			Name:       validators.SanitizeString(req.Name, 200),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := http.StatusCreated
		if resolution.Existed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, resolution)
	}
}

func AttachPaymentMethod(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		customerID, err := pathParam(r, "customerID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req attachPaymentMethodRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		pm, err := svc.AttachPaymentMethod(ctx, customerID, req.PaymentMethodID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": pm.ID, "customer_id": customerID})
	}
}

func CustomerBalance(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		customerID, err := pathParam(r, "customerID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		balance, err := svc.GetBalance(ctx, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// CreateSetupIntent starts saving a payment method. Without a customer id the intent is
// unattached; with one, members must own it.
func CreateSetupIntent(svc customers.Service, refs BillingRefsReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req setupIntentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if req.CustomerID != "" {
			if err := authorizeCustomer(r, refs, req.CustomerID); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		secret, err := svc.CreateSetupIntent(ctx, req.CustomerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"client_secret": secret})
	}
}
