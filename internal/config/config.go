// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Observability
	OTLPEndpoint string // OpenTelemetry collector endpoint (optional)

	// Security
	AllowedOrigins []string
	RateLimitRPM   int

	// Business rules
	Limits Limits
}

// Limits carries the regulatory thresholds. It is built once at startup and
// passed into the engine by value; nothing mutates it afterwards.
type Limits struct {
	// DailyUnitLimit is the maximum standard-drink units a person may buy
	// per calendar day.
	DailyUnitLimit float64
	// MaxPurchasesPerDay is declared in the regulation but not enforced by
	// any detector yet. Reserved.
	MaxPurchasesPerDay int
	// YellowThreshold and RedThreshold map risk scores to tiers.
	YellowThreshold float64
	RedThreshold    float64
	// BulkThresholdML is the single-purchase volume above which a purchase
	// counts toward the bulk-buying detector.
	BulkThresholdML int
	// HighFrequencyThreshold is the 30-day purchase count above which the
	// frequency factor scores maximum points.
	HighFrequencyThreshold int
}

// Defaults
const (
	DefaultPort      = "8080"
	DefaultEnv       = "development"
	DefaultLogLevel  = "info"
	DefaultRateLimit = 120

	DefaultDailyUnitLimit         = 40.0
	DefaultMaxPurchasesPerDay     = 3
	DefaultYellowThreshold        = 40.0
	DefaultRedThreshold           = 70.0
	DefaultBulkThresholdML        = 1000
	DefaultHighFrequencyThreshold = 20
)

// DefaultLimits returns the regulatory defaults.
func DefaultLimits() Limits {
	return Limits{
		DailyUnitLimit:         DefaultDailyUnitLimit,
		MaxPurchasesPerDay:     DefaultMaxPurchasesPerDay,
		YellowThreshold:        DefaultYellowThreshold,
		RedThreshold:           DefaultRedThreshold,
		BulkThresholdML:        DefaultBulkThresholdML,
		HighFrequencyThreshold: DefaultHighFrequencyThreshold,
	}
}

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", DefaultPort),
		Env:          getEnv("ENV", DefaultEnv),
		LogLevel:     getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
		DatabaseURL:  os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPM: getEnvInt("RATE_LIMIT_RPM", DefaultRateLimit),
		AllowedOrigins: []string{
			getEnv("ALLOWED_ORIGIN", "*"),
		},
		Limits: Limits{
			DailyUnitLimit:         getEnvFloat("DAILY_UNIT_LIMIT", DefaultDailyUnitLimit),
			MaxPurchasesPerDay:     getEnvInt("MAX_PURCHASES_PER_DAY", DefaultMaxPurchasesPerDay),
			YellowThreshold:        getEnvFloat("RISK_THRESHOLD_YELLOW", DefaultYellowThreshold),
			RedThreshold:           getEnvFloat("RISK_THRESHOLD_RED", DefaultRedThreshold),
			BulkThresholdML:        getEnvInt("BULK_PURCHASE_THRESHOLD_ML", DefaultBulkThresholdML),
			HighFrequencyThreshold: getEnvInt("HIGH_FREQUENCY_THRESHOLD", DefaultHighFrequencyThreshold),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.Limits.DailyUnitLimit <= 0 {
		return fmt.Errorf("DAILY_UNIT_LIMIT must be positive, got %v", c.Limits.DailyUnitLimit)
	}
	if c.Limits.YellowThreshold >= c.Limits.RedThreshold {
		return fmt.Errorf("RISK_THRESHOLD_YELLOW (%v) must be below RISK_THRESHOLD_RED (%v)",
			c.Limits.YellowThreshold, c.Limits.RedThreshold)
	}
	if c.Limits.BulkThresholdML <= 0 {
		return fmt.Errorf("BULK_PURCHASE_THRESHOLD_ML must be positive, got %d", c.Limits.BulkThresholdML)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
