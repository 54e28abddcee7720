package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flakex/marketplace-billing/api/controllers"
	billingcontrollers "github.com/flakex/marketplace-billing/api/controllers/billing"
	webhookcontrollers "github.com/flakex/marketplace-billing/api/controllers/webhooks"
	"github.com/flakex/marketplace-billing/api/middleware"
	"github.com/flakex/marketplace-billing/internal/accounts"
	"github.com/flakex/marketplace-billing/internal/balances"
	"github.com/flakex/marketplace-billing/internal/catalog"
	"github.com/flakex/marketplace-billing/internal/customers"
	"github.com/flakex/marketplace-billing/internal/payments"
	"github.com/flakex/marketplace-billing/internal/payouts"
	"github.com/flakex/marketplace-billing/internal/refunds"
	"github.com/flakex/marketplace-billing/internal/subscriptions"
	stripewebhook "github.com/flakex/marketplace-billing/internal/webhooks/stripe"
	"github.com/flakex/marketplace-billing/pkg/auth"
	"github.com/flakex/marketplace-billing/pkg/config"
	"github.com/flakex/marketplace-billing/pkg/db"
	"github.com/flakex/marketplace-billing/pkg/logger"
	"github.com/flakex/marketplace-billing/pkg/metrics"
	"github.com/flakex/marketplace-billing/pkg/redis"
	"github.com/flakex/marketplace-billing/pkg/stripe"
)

// Services groups the billing services exposed over HTTP.
type Services struct {
	Accounts      accounts.Service
	Customers     customers.Service
	BillingRefs   billingcontrollers.BillingRefsReader
	Payments      payments.Service
	Subscriptions subscriptions.Service
	Refunds       refunds.Service
	Balances      balances.Service
	Catalog       catalog.Service
	Payouts       payouts.Service
}

// Infra groups the shared clients the router needs.
type Infra struct {
	DB             db.Pinger
	Redis          redis.Pinger
	Idempotency    redis.IdempotencyStore
	Stripe         *stripe.Client
	WebhookService *stripewebhook.Service
	WebhookGuard   *stripewebhook.IdempotencyGuard
	WebhookMetrics *metrics.WebhookMetrics
	Gatherer       prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, infra.DB, infra.Redis))
	})
	if infra.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/stripe/config", controllers.PublicStripeConfig(infra.Stripe))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(infra.WebhookService, infra.Stripe, infra.WebhookGuard, infra.WebhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(infra.Idempotency, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/billing", func(r chi.Router) {
			ownsAccount := billingcontrollers.RequireAccountOwner(svc.BillingRefs, logg)
			ownsCustomer := billingcontrollers.RequireCustomerOwner(svc.BillingRefs, logg)
			ownsSubscription := billingcontrollers.RequireSubscriptionOwner(svc.Subscriptions, svc.BillingRefs, logg)

			r.Post("/accounts", billingcontrollers.CreateAccount(svc.Accounts, logg))
			r.With(ownsAccount).Get("/accounts/{accountID}", billingcontrollers.GetAccount(svc.Accounts, logg))
			r.With(ownsAccount).Post("/accounts/{accountID}/onboarding-link", billingcontrollers.CreateOnboardingLink(svc.Accounts, logg))
			r.With(ownsAccount).Get("/hosts/{accountID}/balance", billingcontrollers.HostBalance(svc.Balances, logg))

			r.Post("/customers", billingcontrollers.ResolveCustomer(svc.Customers, svc.BillingRefs, logg))
			r.With(ownsCustomer).Get("/customers/{customerID}/balance", billingcontrollers.CustomerBalance(svc.Customers, logg))
			r.With(ownsCustomer).Post("/customers/{customerID}/payment-methods", billingcontrollers.AttachPaymentMethod(svc.Customers, logg))
			r.Post("/setup-intents", billingcontrollers.CreateSetupIntent(svc.Customers, svc.BillingRefs, logg))

			r.Post("/charges", billingcontrollers.CreateCharge(svc.Payments, svc.BillingRefs, logg))

			r.Post("/subscriptions", billingcontrollers.CreateSubscription(svc.Subscriptions, svc.BillingRefs, logg))
			r.With(ownsSubscription).Get("/subscriptions/{subscriptionID}", billingcontrollers.GetSubscription(svc.Subscriptions, logg))
			r.With(ownsSubscription).Post("/subscriptions/{subscriptionID}/cancel", billingcontrollers.CancelSubscription(svc.Subscriptions, logg))

			// Platform money and catalog are operator-only.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleOperator, logg))

				r.Post("/refunds/payment-intents/{paymentIntentID}", billingcontrollers.RefundPaymentIntent(svc.Refunds, logg))
				r.Post("/refunds/subscriptions/{subscriptionID}", billingcontrollers.RefundSubscription(svc.Refunds, logg))
				r.Post("/catalog/products", billingcontrollers.CreateProduct(svc.Catalog, logg))
				r.Post("/catalog/prices", billingcontrollers.CreatePrice(svc.Catalog, logg))
				r.Post("/payouts", billingcontrollers.CreatePayout(svc.Payouts, logg))
			})
		})
	})

	return r
}
