package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/flakex/marketplace-billing/api/routes"
	"github.com/flakex/marketplace-billing/internal/accounts"
	"github.com/flakex/marketplace-billing/internal/balances"
	"github.com/flakex/marketplace-billing/internal/catalog"
	"github.com/flakex/marketplace-billing/internal/customers"
	"github.com/flakex/marketplace-billing/internal/payments"
	"github.com/flakex/marketplace-billing/internal/payouts"
	"github.com/flakex/marketplace-billing/internal/refunds"
	"github.com/flakex/marketplace-billing/internal/subscriptions"
	"github.com/flakex/marketplace-billing/internal/users"
	stripewebhook "github.com/flakex/marketplace-billing/internal/webhooks/stripe"
	"github.com/flakex/marketplace-billing/pkg/config"
	"github.com/flakex/marketplace-billing/pkg/db"
	"github.com/flakex/marketplace-billing/pkg/instance"
	"github.com/flakex/marketplace-billing/pkg/logger"
	"github.com/flakex/marketplace-billing/pkg/metrics"
	"github.com/flakex/marketplace-billing/pkg/migrate"
	"github.com/flakex/marketplace-billing/pkg/redis"
	pkgstripe "github.com/flakex/marketplace-billing/pkg/stripe"
)

const (
	webhookIdempotencyScope = "stripe-webhook"
	shutdownTimeout         = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "billing-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "billing-api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg, pkgstripe.WithMetrics(metrics.NewGatewayMetrics(registry)))
	requireResource(ctx, logg, "stripe", err)

	usersRepo := users.NewRepository(dbClient.DB())

	accountsSvc, err := accounts.NewService(accounts.ServiceParams{
		Gateway:     stripeClient,
		BillingRefs: usersRepo,
		HomeCountry: cfg.Stripe.Country(),
		RefreshURL:  cfg.Stripe.OnboardingRefresh,
		ReturnURL:   cfg.Stripe.OnboardingReturn,
	})
	requireResource(ctx, logg, "accounts service", err)

	customersSvc, err := customers.NewService(customers.ServiceParams{
		Gateway:     stripeClient,
		BillingRefs: usersRepo,
	})
	requireResource(ctx, logg, "customers service", err)

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Gateway:     stripeClient,
		ReturnURL:   cfg.Stripe.PaymentReturnURL,
		RouteToHost: cfg.Stripe.RouteToHost,
	})
	requireResource(ctx, logg, "payments service", err)

	subscriptionsSvc, err := subscriptions.NewService(subscriptions.ServiceParams{
		Gateway:     stripeClient,
		RouteToHost: cfg.Stripe.RouteToHost,
	})
	requireResource(ctx, logg, "subscriptions service", err)

	refundsSvc, err := refunds.NewService(refunds.ServiceParams{Gateway: stripeClient})
	requireResource(ctx, logg, "refunds service", err)

	balancesSvc, err := balances.NewService(balances.ServiceParams{Gateway: stripeClient})
	requireResource(ctx, logg, "balances service", err)

	catalogSvc, err := catalog.NewService(catalog.ServiceParams{Gateway: stripeClient})
	requireResource(ctx, logg, "catalog service", err)

	payoutsSvc, err := payouts.NewService(payouts.ServiceParams{Gateway: stripeClient})
	requireResource(ctx, logg, "payouts service", err)

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Subscriptions: subscriptionsSvc,
		Logger:        logg,
	})
	requireResource(ctx, logg, "stripe webhook service", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, webhookIdempotencyScope)
	requireResource(ctx, logg, "stripe webhook guard", err)

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.GetID(),
		"stripe_env": stripeClient.Environment(),
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			DB:             dbClient,
			Redis:          redisClient,
			Idempotency:    redisClient,
			Stripe:         stripeClient,
			WebhookService: webhookSvc,
			WebhookGuard:   webhookGuard,
			WebhookMetrics: metrics.NewWebhookMetrics(registry),
			Gatherer:       registry,
		}, routes.Services{
			Accounts:      accountsSvc,
			Customers:     customersSvc,
			BillingRefs:   usersRepo,
			Payments:      paymentsSvc,
			Subscriptions: subscriptionsSvc,
			Refunds:       refundsSvc,
			Balances:      balancesSvc,
			Catalog:       catalogSvc,
			Payouts:       payoutsSvc,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting billing api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = multierr.Combine(
		server.Shutdown(shutdownCtx),
		redisClient.Close(),
		dbClient.Close(),
	)
	if err != nil {
		logg.Error(shutdownCtx, "shutdown completed with errors", err)
		os.Exit(1)
	}
	logg.Info(shutdownCtx, "billing api stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
