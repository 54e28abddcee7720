package refunds

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	pkgstripe "github.com/flakex/marketplace-billing/pkg/stripe"
)

const expandLatestCharge = "latest_charge"

type gateway interface {
	GetPaymentIntent(ctx context.Context, id string, expand ...string) (*stripe.PaymentIntent, error)
	LatestInvoiceForSubscription(ctx context.Context, subscriptionID string) (*stripe.Invoice, error)
	CreateRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error)
}

// Service issues full refunds. It keeps no local record, so refunding the same
// charge twice surfaces the gateway's rejection.
type Service interface {
	RefundPaymentIntent(ctx context.Context, paymentIntentID string) (*Refund, error)
	RefundSubscriptionLatestInvoice(ctx context.Context, subscriptionID string) (*Refund, error)
}

// ServiceParams groups dependencies for the refund service.
type ServiceParams struct {
	Gateway gateway
}

// Refund is the caller-facing view of a gateway refund.
type Refund struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	ChargeID        string `json:"charge_id"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
}

type service struct {
	gateway gateway
}

// NewService builds a refund service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	return &service{gateway: params.Gateway}, nil
}

// RefundPaymentIntent fully refunds the latest charge of the intent.
func (s *service) RefundPaymentIntent(ctx context.Context, paymentIntentID string) (*Refund, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	return s.refundIntent(ctx, paymentIntentID)
}

// RefundSubscriptionLatestInvoice fully refunds the charge behind the
// subscription's newest invoice.
func (s *service) RefundSubscriptionLatestInvoice(ctx context.Context, subscriptionID string) (*Refund, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}

	inv, err := s.gateway.LatestInvoiceForSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, pkgstripe.Classify(err, "list subscription invoices")
	}
	if inv == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found").
			WithDetails(map[string]string{"subscription_id": subscriptionID})
	}

	paymentIntentID := invoicePaymentIntentID(inv)
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found").
			WithDetails(map[string]string{"invoice_id": inv.ID})
	}
	return s.refundIntent(ctx, paymentIntentID)
}

func (s *service) refundIntent(ctx context.Context, paymentIntentID string) (*Refund, error) {
	pi, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID, expandLatestCharge)
	if err != nil {
		return nil, pkgstripe.ClassifyLookup(err, "payment intent")
	}
	if pi.LatestCharge == nil || pi.LatestCharge.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "charge not found").
			WithDetails(map[string]string{"payment_intent_id": paymentIntentID})
	}

	refund, err := s.gateway.CreateRefund(ctx, &stripe.RefundParams{
		Charge: stripe.String(pi.LatestCharge.ID),
	})
	if err != nil {
		return nil, pkgstripe.Classify(err, "refund failed")
	}
	return &Refund{
		ID:              refund.ID,
		Status:          string(refund.Status),
		Amount:          refund.Amount,
		Currency:        string(refund.Currency),
		ChargeID:        pi.LatestCharge.ID,
		PaymentIntentID: paymentIntentID,
	}, nil
}

// invoicePaymentIntentID returns the first payment intent recorded against the invoice.
func invoicePaymentIntentID(inv *stripe.Invoice) string {
	if inv.Payments == nil {
		return ""
	}
	for _, p := range inv.Payments.Data {
		if p == nil || p.Payment == nil || p.Payment.PaymentIntent == nil {
			continue
		}
		if p.Payment.PaymentIntent.ID != "" {
			return p.Payment.PaymentIntent.ID
		}
	}
	return ""
}
