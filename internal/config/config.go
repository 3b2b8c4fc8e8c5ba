// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Public base URL used to build checkout redirect and signup links
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Payment processor
	PaymentsAPIURL             string        `env:"PAYMENTS_API_URL" envDefault:"https://api.stripe.com"`
	PaymentsSecretKey          string        `env:"PAYMENTS_SECRET_KEY,required"`
	PaymentsWebhookSecret      string        `env:"PAYMENTS_WEBHOOK_SECRET,required"`
	PaymentsSignatureHeader    string        `env:"PAYMENTS_SIGNATURE_HEADER" envDefault:"Stripe-Signature"`
	PaymentsSignatureTolerance time.Duration `env:"PAYMENTS_SIGNATURE_TOLERANCE" envDefault:"5m"`

	// Checkout session parameters
	CheckoutCurrency       string `env:"CHECKOUT_CURRENCY" envDefault:"usd"`
	CheckoutApplicationFee int64  `env:"CHECKOUT_APPLICATION_FEE" envDefault:"1000"`
	CheckoutDefaultImage   string `env:"CHECKOUT_DEFAULT_IMAGE" envDefault:""`

	// Where guests are sent to register after buying.
	// Defaults to BaseURL + "/signup" when empty.
	SignupURL string `env:"SIGNUP_URL" envDefault:""`

	// Outbound email
	MailFrom         string        `env:"MAIL_FROM" envDefault:"no-reply@shelfkit.local"`
	SMTPAddr         string        `env:"SMTP_ADDR" envDefault:""`
	SMTPUsername     string        `env:"SMTP_USERNAME" envDefault:""`
	SMTPPassword     string        `env:"SMTP_PASSWORD" envDefault:""`
	SMTPRequireTLS   bool          `env:"SMTP_REQUIRE_TLS" envDefault:"false"`
	SMTPTimeout      time.Duration `env:"SMTP_TIMEOUT" envDefault:"30s"`
	MailPollInterval time.Duration `env:"MAIL_POLL_INTERVAL" envDefault:"5s"`
	MailBatchSize    int           `env:"MAIL_BATCH_SIZE" envDefault:"20"`

	// Rate limiting for the public checkout endpoint (per IP)
	RateLimitCheckoutEnabled bool `env:"RATE_LIMIT_CHECKOUT_ENABLED" envDefault:"true"`
	RateLimitCheckoutRPS     int  `env:"RATE_LIMIT_CHECKOUT_RPS" envDefault:"5"`
	RateLimitCheckoutBurst   int  `env:"RATE_LIMIT_CHECKOUT_BURST" envDefault:"10"`

	// Processed webhook event ids are remembered this long
	EventClaimTTL time.Duration `env:"EVENT_CLAIM_TTL" envDefault:"24h"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetSignupURL returns the registration link sent to guest buyers.
func (c *Config) GetSignupURL() string {
	if c.SignupURL != "" {
		return c.SignupURL
	}
	return strings.TrimSuffix(c.BaseURL, "/") + "/signup"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.CheckoutApplicationFee < 0 {
		return nil, fmt.Errorf("CHECKOUT_APPLICATION_FEE must not be negative")
	}
	if cfg.SMTPTimeout <= 0 {
		return nil, fmt.Errorf("SMTP_TIMEOUT must be positive")
	}
	return cfg, nil
}
