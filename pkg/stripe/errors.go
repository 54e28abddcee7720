package stripe

import (
	"errors"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
)

// GatewayDetails is the client-safe summary of a gateway rejection.
type GatewayDetails struct {
	Code        string `json:"code,omitempty"`
	DeclineCode string `json:"decline_code,omitempty"`
	Type        string `json:"type,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// IsResourceMissing reports whether the gateway said the object does not exist.
func IsResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing
}

// Classify turns a gateway error into a typed service error. Missing resources
// become NotFound and every other failure becomes a Gateway error carrying the
// rejection details. Errors that are already typed pass through.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if IsResourceMissing(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	}

	wrapped := pkgerrors.Wrap(pkgerrors.CodeGateway, err, message)
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		wrapped = wrapped.WithDetails(GatewayDetails{
			Code:        string(stripeErr.Code),
			DeclineCode: string(stripeErr.DeclineCode),
			Type:        string(stripeErr.Type),
			RequestID:   stripeErr.RequestID,
			Reason:      stripeErr.Msg,
		})
	}
	return wrapped
}

// ClassifyLookup is Classify for reads, naming the resource in both outcomes.
func ClassifyLookup(err error, resource string) error {
	if IsResourceMissing(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, resource+" not found")
	}
	return Classify(err, "retrieve "+resource)
}
