// Package config defines the configuration for the Stripe facility services.
// Configuration is loaded once at process start and is immutable thereafter;
// components receive the subset they need through their constructors.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
package config

import (
	"fmt"
	"time"

	"stripefacility/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Mode selects which set of Stripe credentials is active.
type Mode string

const (
	ModeLive Mode = "live"
	ModeTest Mode = "test"
)

// Webhook endpoint types. Each has its own signing secret in live mode.
const (
	EndpointInvoice  = "invoice"
	EndpointCustomer = "customer"
)

// Config is the top-level configuration struct.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"stripe-facility"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Billing       BillingConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// DatabaseConfig holds the optional event ledger connection. When URL is
// empty, deliveries are not deduplicated.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"5"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`

	// ClaimTTL is how long an unprocessed ledger claim blocks redeliveries.
	// It must exceed Server.RequestTimeout.
	ClaimTTL time.Duration `envconfig:"LEDGER_CLAIM_TTL" default:"10m"`
}

// Enabled reports whether a ledger database is configured.
func (d DatabaseConfig) Enabled() bool {
	return !d.URL.IsZero()
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region         string `envconfig:"AWS_REGION" default:"us-east-1"`
	EventsQueueURL string `envconfig:"SQS_STRIPE_EVENTS" validate:"omitempty,url"`
	EndpointURL    string `envconfig:"AWS_ENDPOINT_URL"`
}

// BillingConfig holds Stripe credentials for both modes. Only the set chosen
// by Mode needs to be present.
type BillingConfig struct {
	Mode       Mode          `envconfig:"STRIPE_MODE" default:"live" validate:"oneof=live test"`
	APIBaseURL string        `envconfig:"STRIPE_API_BASE_URL" default:"https://api.stripe.com" validate:"url"`
	Tolerance  time.Duration `envconfig:"WEBHOOK_TOLERANCE" default:"5m" validate:"gte=0s"`

	SecretKey          SecretString `envconfig:"STRIPE_SECRET_KEY"`
	PublishableKey     string       `envconfig:"STRIPE_PUBLISHABLE_KEY"`
	TestSecretKey      SecretString `envconfig:"STRIPE_TEST_SECRET_KEY"`
	TestPublishableKey string       `envconfig:"STRIPE_TEST_PUBLISHABLE_KEY"`

	WebhookSecretInvoice  SecretString `envconfig:"WEBHOOK_SECRET_INVOICE"`
	WebhookSecretCustomer SecretString `envconfig:"WEBHOOK_SECRET_CUSTOMER"`
	// WebhookSecretCLI signs events forwarded by the Stripe CLI. In test mode
	// it is used for every endpoint.
	WebhookSecretCLI SecretString `envconfig:"STRIPE_WEBHOOK_SECRET_CLI"`
}

// ActiveSecretKey returns the API key for the configured mode.
func (b BillingConfig) ActiveSecretKey() SecretString {
	if b.Mode == ModeTest {
		return b.TestSecretKey
	}
	return b.SecretKey
}

// ActivePublishableKey returns the publishable key for the configured mode.
func (b BillingConfig) ActivePublishableKey() string {
	if b.Mode == ModeTest {
		return b.TestPublishableKey
	}
	return b.PublishableKey
}

// WebhookSecrets maps each endpoint type to its signing secret for the
// configured mode.
func (b BillingConfig) WebhookSecrets() map[string]SecretString {
	if b.Mode == ModeTest {
		return map[string]SecretString{
			EndpointInvoice:  b.WebhookSecretCLI,
			EndpointCustomer: b.WebhookSecretCLI,
		}
	}
	return map[string]SecretString{
		EndpointInvoice:  b.WebhookSecretInvoice,
		EndpointCustomer: b.WebhookSecretCustomer,
	}
}

// WebhookSecret returns the secret for one endpoint type.
func (b BillingConfig) WebhookSecret(endpoint string) (SecretString, error) {
	secret, ok := b.WebhookSecrets()[endpoint]
	if !ok {
		return "", fmt.Errorf("unknown webhook endpoint %q", endpoint)
	}
	return secret, nil
}

// validateCredentials checks that the active mode has an API key and a
// signing secret for every endpoint. Live endpoints may not share a secret.
func (b BillingConfig) validateCredentials() error {
	if b.ActiveSecretKey().IsZero() {
		if b.Mode == ModeTest {
			return fmt.Errorf("STRIPE_TEST_SECRET_KEY is required when STRIPE_MODE=test")
		}
		return fmt.Errorf("STRIPE_SECRET_KEY is required when STRIPE_MODE=live")
	}
	if b.Mode == ModeTest {
		if b.WebhookSecretCLI.IsZero() {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET_CLI is required when STRIPE_MODE=test")
		}
		return nil
	}
	if b.WebhookSecretInvoice.IsZero() {
		return fmt.Errorf("WEBHOOK_SECRET_INVOICE is required when STRIPE_MODE=live")
	}
	if b.WebhookSecretCustomer.IsZero() {
		return fmt.Errorf("WEBHOOK_SECRET_CUSTOMER is required when STRIPE_MODE=live")
	}
	if b.WebhookSecretInvoice.Unmask() == b.WebhookSecretCustomer.Unmask() {
		return fmt.Errorf("WEBHOOK_SECRET_INVOICE and WEBHOOK_SECRET_CUSTOMER must differ when STRIPE_MODE=live")
	}
	return nil
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"StripeFacility"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
