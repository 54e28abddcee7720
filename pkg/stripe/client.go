package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/flakex/marketplace-billing/pkg/config"
	"github.com/flakex/marketplace-billing/pkg/logger"
	"github.com/flakex/marketplace-billing/pkg/metrics"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client talks to the Stripe API with an explicit key and backend. It never
// touches the package-level stripe.Key, so several clients can coexist.
type Client struct {
	backend        stripe.Backend
	key            string
	environment    string
	signingSecret  string
	publishableKey string
	metrics        *metrics.GatewayMetrics
}

// Option customizes the client at construction time.
type Option func(*Client)

// WithBackend overrides the HTTP backend, typically to point at a local server.
func WithBackend(b stripe.Backend) Option {
	return func(c *Client) { c.backend = b }
}

// WithMetrics records every gateway call on the provided metrics.
func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient validates the configured secrets and builds a client with
// automatic network retries disabled.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.SecretKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	client := &Client{
		key:            apiKey,
		environment:    env,
		signingSecret:  signingSecret,
		publishableKey: strings.TrimSpace(cfg.PublishableKey),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.backend == nil {
		backendCfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(0)}
		if logg != nil {
			backendCfg.LeveledLogger = newLeveledLogger(ctx, logg)
		}
		client.backend = stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}
	return client, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// PublishableKey returns the key handed to browser and mobile clients.
func (c *Client) PublishableKey() string {
	if c == nil {
		return ""
	}
	return c.publishableKey
}

func (c *Client) observe(operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	code := ""
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code = string(stripeErr.Code)
		if code == "" {
			code = string(stripeErr.Type)
		}
	} else if err != nil {
		code = "network"
	}
	c.metrics.Observe(operation, time.Since(start), code, err != nil)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
