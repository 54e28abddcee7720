package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "FLAKEX"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv             = "FLAKEX_APP_ENV"
	EnvPort               = "FLAKEX_APP_PORT"
	EnvLogLevel           = "FLAKEX_LOG_LEVEL"
	EnvDBDSN              = "FLAKEX_DB_DSN"
	EnvAutoMigrate        = "FLAKEX_AUTO_MIGRATE"
	EnvRedisURL           = "FLAKEX_REDIS_URL"
	EnvJWTSecret          = "FLAKEX_JWT_SECRET"
	EnvJWTIssuer          = "FLAKEX_JWT_ISSUER"
	EnvStripeSecretKey    = "FLAKEX_STRIPE_SECRET_KEY"
	EnvStripePublishable  = "FLAKEX_STRIPE_PUBLISHABLE_KEY"
	EnvStripeWebhookKey   = "FLAKEX_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv          = "FLAKEX_STRIPE_ENV"
	EnvStripeHomeCountry  = "FLAKEX_STRIPE_HOME_COUNTRY"
	EnvStripeRouteToHost  = "FLAKEX_STRIPE_ROUTE_TO_HOST"
	EnvStripeRefreshURL   = "FLAKEX_STRIPE_ONBOARDING_REFRESH_URL"
	EnvStripeReturnURL    = "FLAKEX_STRIPE_ONBOARDING_RETURN_URL"
	EnvStripePaymentURL   = "FLAKEX_STRIPE_PAYMENT_RETURN_URL"
	EnvWebhookIdempotency = "FLAKEX_WEBHOOK_IDEMPOTENCY_TTL"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Webhooks WebhookConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Stripe.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FLAKEX_APP_ENV" required:"true"`
	Port         string `envconfig:"FLAKEX_APP_PORT" default:"8000"`
	LogLevel     string `envconfig:"FLAKEX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FLAKEX_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"FLAKEX_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN             string        `envconfig:"FLAKEX_DB_DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"FLAKEX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FLAKEX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FLAKEX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FLAKEX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FLAKEX_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"FLAKEX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FLAKEX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FLAKEX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FLAKEX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FLAKEX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the tokens minted by the external identity provider.
type JWTConfig struct {
	Secret string `envconfig:"FLAKEX_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FLAKEX_JWT_ISSUER"`
}

type StripeConfig struct {
	SecretKey         string `envconfig:"FLAKEX_STRIPE_SECRET_KEY" required:"true"`
	PublishableKey    string `envconfig:"FLAKEX_STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret     string `envconfig:"FLAKEX_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env               string `envconfig:"FLAKEX_STRIPE_ENV" default:"test"`
	HomeCountry       string `envconfig:"FLAKEX_STRIPE_HOME_COUNTRY" default:"US"`
	RouteToHost       bool   `envconfig:"FLAKEX_STRIPE_ROUTE_TO_HOST" default:"false"`
	OnboardingRefresh string `envconfig:"FLAKEX_STRIPE_ONBOARDING_REFRESH_URL" default:"https://flakex.com"`
	OnboardingReturn  string `envconfig:"FLAKEX_STRIPE_ONBOARDING_RETURN_URL" default:"https://flakex.com"`
	PaymentReturnURL  string `envconfig:"FLAKEX_STRIPE_PAYMENT_RETURN_URL" default:"https://flakex.com"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Country returns the upper-cased operator home country.
func (s StripeConfig) Country() string {
	return strings.ToUpper(strings.TrimSpace(s.HomeCountry))
}

func (s StripeConfig) validate() error {
	if len(s.Country()) != 2 {
		return fmt.Errorf("%s must be an ISO 3166-1 alpha-2 code, got %q", EnvStripeHomeCountry, s.HomeCountry)
	}
	for env, raw := range map[string]string{
		EnvStripeRefreshURL: s.OnboardingRefresh,
		EnvStripeReturnURL:  s.OnboardingReturn,
		EnvStripePaymentURL: s.PaymentReturnURL,
	} {
		if !strings.HasPrefix(strings.TrimSpace(raw), "https://") {
			return fmt.Errorf("%s must be an https url", env)
		}
	}
	return nil
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"FLAKEX_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}
