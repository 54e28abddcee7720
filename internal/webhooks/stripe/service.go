package stripewebhook

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/flakex/marketplace-billing/internal/subscriptions"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

type subscriptionReader interface {
	Get(ctx context.Context, subscriptionID string) (*subscriptions.Subscription, error)
}

type ServiceParams struct {
	Subscriptions subscriptionReader
	Logger        *logger.Logger
}

// Result reports what the dispatcher did with a verified event.
type Result struct {
	Handled      bool
	Subscription *subscriptions.Subscription
}

type Service struct {
	subscriptions subscriptionReader
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		subscriptions: params.Subscriptions,
		logg:          params.Logger,
	}, nil
}

// HandleEvent dispatches a verified event. Unknown types are logged and reported as not handled.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (*Result, error) {
	if event == nil || event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id": event.ID,
		"event_type":      string(event.Type),
	})

	switch event.Type {
	case stripe.EventTypeInvoicePaymentSucceeded:
		subscriptionID := invoiceSubscriptionID(event)
		if subscriptionID == "" {
			s.logg.Info(ctx, "invoice paid without subscription")
			return &Result{Handled: true}, nil
		}
		sub, err := s.subscriptions.Get(ctx, subscriptionID)
		if err != nil {
			return nil, err
		}
		s.logg.Info(s.logg.WithField(ctx, "subscription_id", sub.ID), "subscription invoice paid")
		return &Result{Handled: true, Subscription: sub}, nil
	case stripe.EventTypeInvoicePaymentFailed:
		s.logg.Warn(s.logg.WithField(ctx, "subscription_id", invoiceSubscriptionID(event)), "invoice payment failed")
		return &Result{Handled: true}, nil
	default:
		s.logg.Info(ctx, "unhandled stripe event")
		return &Result{}, nil
	}
}

// invoiceSubscriptionID reads the subscription from either the legacy top-level
// field or the parent details newer API versions send. Any missing or null link
// yields an empty id.
func invoiceSubscriptionID(event *stripe.Event) string {
	if event == nil || event.Data == nil {
		return ""
	}
	invoice := event.Data.Object
	if id := objectID(invoice["subscription"]); id != "" {
		return id
	}
	parent, _ := invoice["parent"].(map[string]interface{})
	details, _ := parent["subscription_details"].(map[string]interface{})
	return objectID(details["subscription"])
}

// objectID accepts either a bare id or an expanded object.
func objectID(v interface{}) string {
	switch typed := v.(type) {
	case string:
		return typed
	case map[string]interface{}:
		id, _ := typed["id"].(string)
		return id
	default:
		return ""
	}
}
