package controllers

import (
	"net/http"

	"github.com/flakex/marketplace-billing/api/middleware"
	"github.com/flakex/marketplace-billing/api/responses"
)

type stripeConfigSource interface {
	PublishableKey() string
	Environment() string
}

// PublicStripeConfig exposes what the frontend needs to initialise Stripe.js.
func PublicStripeConfig(src stripeConfigSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"publishable_key": src.PublishableKey(),
			"environment":     src.Environment(),
		})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"scope":   "private",
			"status":  "ok",
			"user_id": middleware.UserIDFromContext(r.Context()),
		})
	}
}
