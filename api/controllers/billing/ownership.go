package billing

import (
	"context"
	"net/http"

	"github.com/flakex/marketplace-billing/api/middleware"
	"github.com/flakex/marketplace-billing/api/responses"
	"github.com/flakex/marketplace-billing/internal/subscriptions"
	"github.com/flakex/marketplace-billing/pkg/db/models"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

type subscriptionReader interface {
	Get(ctx context.Context, subscriptionID string) (*subscriptions.Subscription, error)
}

// callerRefs loads the caller's stored gateway ids. A caller without refs owns nothing.
func callerRefs(r *http.Request, refs BillingRefsReader) (*models.UserBillingRef, error) {
	userID, err := callerID(r)
	if err != nil {
		return nil, err
	}
	if refs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing refs reader unavailable")
	}
	ref, err := refs.FindBillingRefs(r.Context(), userID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return &models.UserBillingRef{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// authorizeCustomer lets operators through and holds members to their own customer.
func authorizeCustomer(r *http.Request, refs BillingRefsReader, customerID string) error {
	if middleware.IsOperator(r.Context()) {
		return nil
	}
	ref, err := callerRefs(r, refs)
	if err != nil {
		return err
	}
	if customerID == "" || ref.StripeCustomerID == nil || *ref.StripeCustomerID != customerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "customer does not belong to caller")
	}
	return nil
}

// authorizeAccount lets operators through and holds members to their own connected account.
func authorizeAccount(r *http.Request, refs BillingRefsReader, accountID string) error {
	if middleware.IsOperator(r.Context()) {
		return nil
	}
	ref, err := callerRefs(r, refs)
	if err != nil {
		return err
	}
	if accountID == "" || ref.StripeAccountID == nil || *ref.StripeAccountID != accountID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "connected account does not belong to caller")
	}
	return nil
}

// RequireCustomerOwner guards routes carrying a {customerID} path parameter.
func RequireCustomerOwner(refs BillingRefsReader, logg *logger.Logger) func(http.Handler) http.Handler {
	return requireOwner(logg, func(r *http.Request) error {
		customerID, err := pathParam(r, "customerID")
		if err != nil {
			return err
		}
		return authorizeCustomer(r, refs, customerID)
	})
}

// RequireAccountOwner guards routes carrying an {accountID} path parameter.
func RequireAccountOwner(refs BillingRefsReader, logg *logger.Logger) func(http.Handler) http.Handler {
	return requireOwner(logg, func(r *http.Request) error {
		accountID, err := pathParam(r, "accountID")
		if err != nil {
			return err
		}
		return authorizeAccount(r, refs, accountID)
	})
}

// RequireSubscriptionOwner guards {subscriptionID} routes by the subscription's customer.
func RequireSubscriptionOwner(subs subscriptionReader, refs BillingRefsReader, logg *logger.Logger) func(http.Handler) http.Handler {
	return requireOwner(logg, func(r *http.Request) error {
		if middleware.IsOperator(r.Context()) {
			return nil
		}
		subscriptionID, err := pathParam(r, "subscriptionID")
		if err != nil {
			return err
		}
		if subs == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable")
		}
		sub, err := subs.Get(r.Context(), subscriptionID)
		if err != nil {
			return err
		}
		return authorizeCustomer(r, refs, sub.CustomerID)
	})
}

func requireOwner(logg *logger.Logger, check func(*http.Request) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(r); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
