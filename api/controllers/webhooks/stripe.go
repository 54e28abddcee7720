package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/flakex/marketplace-billing/api/responses"
	stripewebhook "github.com/flakex/marketplace-billing/internal/webhooks/stripe"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	"github.com/flakex/marketplace-billing/pkg/logger"
	"github.com/flakex/marketplace-billing/pkg/metrics"
)

// maxPayloadBytes matches the ceiling Stripe documents for event payloads.
const maxPayloadBytes = int64(65536)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (*stripewebhook.Result, error)
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook verifies and dispatches gateway events. Verification failures never reach the dispatcher.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, counter *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				counter.Inc("unknown", metrics.WebhookOutcomeRejected)
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeTooLarge, err, "stripe event payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			counter.Inc("unknown", metrics.WebhookOutcomeRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, sigHeader, client.SigningSecret(), webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			counter.Inc("unknown", metrics.WebhookOutcomeRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "webhook signature verification failed"))
			return
		}
		eventType := string(event.Type)
		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			counter.Inc(eventType, metrics.WebhookOutcomeFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			counter.Inc(eventType, metrics.WebhookOutcomeDuplicate)
			responses.WriteSuccess(w, map[string]any{"received": true, "duplicate": true})
			return
		}

		result, err := dispatch(ctx, svc, &event)
		if err != nil {
			if delErr := guard.Delete(ctx, event.ID); delErr != nil && logg != nil {
				logg.Error(ctx, "release webhook idempotency mark", delErr)
			}
			counter.Inc(eventType, metrics.WebhookOutcomeFailed)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome := metrics.WebhookOutcomeIgnored
		if result != nil && result.Handled {
			outcome = metrics.WebhookOutcomeHandled
		}
		counter.Inc(eventType, outcome)
		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		responses.WriteSuccess(w, map[string]any{"received": true})
	}
}

// dispatch turns a handler panic into an error so the idempotency mark is
// released and the gateway redelivery is processed.
func dispatch(ctx context.Context, svc StripeWebhookService, event *stripe.Event) (result *stripewebhook.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("stripe event handler panicked: %v", rec))
		}
	}()
	return svc.HandleEvent(ctx, event)
}
