package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/domain/payment"
)

// Config holds the complete application configuration, loadable from
// environment variables (HOMESTORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (HOMESTORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Payment      PaymentConfig
	PaynowUSD    PaynowConfig
	PaynowZWL    PaynowConfig
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// PaymentConfig controls the confirmation loop schedule and the static
// USD to ZWL conversion rate.
type PaymentConfig struct {
	InitialDelay      time.Duration `default:"30s" usage:"Grace period before the first status check" flag:"payment-initial-delay"`
	CheckInterval     time.Duration `default:"15s" usage:"Interval between status checks" flag:"payment-check-interval"`
	MaxAttempts       int           `default:"10"  usage:"Status checks before timing out" flag:"payment-max-attempts"`
	SyncInitialDelay  time.Duration `default:"30s" usage:"Grace period for the synchronous variant" flag:"payment-sync-initial-delay"`
	SyncCheckInterval time.Duration `default:"10s" usage:"Check interval for the synchronous variant" flag:"payment-sync-check-interval"`
	SyncMaxAttempts   int           `default:"6"   usage:"Status checks for the synchronous variant" flag:"payment-sync-max-attempts"`
	ConversionRate    string        `default:"35"  usage:"ZWL per 1 USD" flag:"payment-conversion-rate"`
}

// PaynowConfig holds one Paynow integration. USD and ZWL charges go through
// separate merchant integrations.
type PaynowConfig struct {
	IntegrationID  string `usage:"Paynow integration ID"`
	IntegrationKey string `usage:"Paynow integration key"`
	ReturnURL      string `usage:"URL the user is sent back to after payment" flag:"return-url"`
	ResultURL      string `usage:"URL Paynow posts status updates to" flag:"result-url"`
}

// PaymentServiceConfig converts the loaded values into the payment domain's
// Config.
func (c *Config) PaymentServiceConfig() (payment.Config, error) {
	rate, err := decimal.NewFromString(c.Payment.ConversionRate)
	if err != nil {
		return payment.Config{}, errors.Wrap(err, "parse conversion rate")
	}
	return payment.Config{
		InitialDelay:      c.Payment.InitialDelay,
		CheckInterval:     c.Payment.CheckInterval,
		MaxAttempts:       c.Payment.MaxAttempts,
		SyncInitialDelay:  c.Payment.SyncInitialDelay,
		SyncCheckInterval: c.Payment.SyncCheckInterval,
		SyncMaxAttempts:   c.Payment.SyncMaxAttempts,
		ConversionRate:    rate,
	}, nil
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "HOMESTORE",
		Files:     []string{"config.yaml", "/etc/homestore/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set HOMESTORE_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's HOMESTORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
