// Package config provides centralized configuration loading for the batch
// jobs service. All environment variables are read once at boot; hard
// validation failures surface as joberrors.ConfigurationError before the
// worker pool starts.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/eventforge/batchjobs/internal/joberrors"
)

// Config holds all service configuration.
type Config struct {
	// HTTP
	Port string

	// Database
	DatabaseDSN string

	// Credential Vault
	PaymentEncryptionKey string // base64, 32 bytes after decode

	// Rate Governor
	EmailRatePerSecond  int
	StripeRatePerSecond int
	StripeCallDelay     time.Duration

	// Subscription Reconciler
	RenewalThresholdDays         int
	SubscriptionExtendedThresholdDays int

	// Email Dispatcher
	DefaultEmailBatchSize int
	DefaultMaxEmails      int
	AssetWarmupTimeout    time.Duration
	FromEmail             string

	// Fee/Tax Backfiller
	FeeTaxBatchSize    int
	FeeRateLimitDelay  time.Duration
	SettlementDelayDays int

	// Object storage
	AWSRegion string

	// Rate governor shared state (optional)
	RedisAddr string

	// Worker pool
	WorkerPoolSize  int
	JobDeadline     time.Duration

	// Observability
	LogFormat string
	LogLevel  string
	SentryDSN string
}

// Load reads configuration from the environment. Required variables that are
// missing or malformed cause Load to return a joberrors.ConfigurationError.
func Load() (*Config, error) {
	c := &Config{
		Port:        getenv("PORT", "8090"),
		DatabaseDSN: os.Getenv("DATABASE_DSN"),

		PaymentEncryptionKey: os.Getenv("PAYMENT_ENCRYPTION_KEY"),

		EmailRatePerSecond:  getenvInt("EMAIL_RATE_PER_SECOND", 200),
		StripeRatePerSecond: getenvInt("STRIPE_RATE_PER_SECOND", 100),
		StripeCallDelay:     getenvDuration("STRIPE_CALL_DELAY_MS", 100*time.Millisecond),

		RenewalThresholdDays:              getenvInt("SUBSCRIPTION_RENEWAL_THRESHOLD_DAYS", 7),
		SubscriptionExtendedThresholdDays: getenvInt("SUBSCRIPTION_EXTENDED_THRESHOLD_DAYS", -1),

		DefaultEmailBatchSize: getenvInt("EMAIL_BATCH_SIZE", 50),
		DefaultMaxEmails:      getenvInt("EMAIL_MAX_RECIPIENTS", 10000),
		AssetWarmupTimeout:    getenvDuration("ASSET_WARMUP_TIMEOUT_MS", 10*time.Second),
		FromEmail:             getenv("EMAIL_FROM_ADDRESS", "noreply@eventforge.example"),

		FeeTaxBatchSize:     getenvInt("FEES_TAX_BATCH_SIZE", 100),
		FeeRateLimitDelay:   getenvDuration("FEES_TAX_RATE_LIMIT_DELAY_MS", 100*time.Millisecond),
		SettlementDelayDays: getenvInt("FEES_TAX_SETTLEMENT_DELAY_DAYS", 14),

		AWSRegion: getenv("AWS_REGION", "us-east-1"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		WorkerPoolSize: getenvInt("WORKER_POOL_SIZE", 8),
		JobDeadline:    getenvDuration("JOB_DEADLINE_MS", 0),

		LogFormat: getenv("LOG_FORMAT", "json"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		SentryDSN: os.Getenv("SENTRY_DSN"),
	}

	if c.DatabaseDSN == "" {
		return nil, joberrors.NewConfigurationError("DATABASE_DSN is required")
	}
	if c.PaymentEncryptionKey == "" {
		return nil, joberrors.NewConfigurationError("PAYMENT_ENCRYPTION_KEY is required")
	}
	if c.SubscriptionExtendedThresholdDays < 0 {
		return nil, joberrors.NewConfigurationError("SUBSCRIPTION_EXTENDED_THRESHOLD_DAYS is required and must be >= 0")
	}

	return c, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
