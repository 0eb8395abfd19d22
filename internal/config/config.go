// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Game settings
	HeistModeDuration   time.Duration
	DefenseTickInterval time.Duration
	FeedSize            int
	RNGSeed             int64 // 0 means crypto randomness; non-zero seeds the PRNG (test/staging only)

	// Security
	RateLimitRPS int
	AdminSecret  string // Admin API secret

	// Observability
	OTLPEndpoint string // OTLP gRPC collector address (optional; tracing disabled if empty)
}

const (
	DefaultPort                = "8080"
	DefaultEnv                 = "development"
	DefaultLogLevel            = "info"
	DefaultRateLimit           = 100
	DefaultFeedSize            = 15
	DefaultHeistModeDuration   = 10 * time.Minute
	DefaultDefenseTickInterval = 30 * time.Second
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		HeistModeDuration:   getEnvDuration("HEIST_MODE_DURATION", DefaultHeistModeDuration),
		DefenseTickInterval: getEnvDuration("DEFENSE_TICK_INTERVAL", DefaultDefenseTickInterval),
		FeedSize:            int(getEnvInt64("FEED_SIZE", DefaultFeedSize)),
		RNGSeed:             getEnvInt64("RNG_SEED", 0),
		RateLimitRPS:        int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		AdminSecret:         os.Getenv("ADMIN_SECRET"),
		OTLPEndpoint:        os.Getenv("OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration values are usable
func (c *Config) Validate() error {
	if c.HeistModeDuration <= 0 {
		return fmt.Errorf("HEIST_MODE_DURATION must be positive")
	}
	if c.DefenseTickInterval <= 0 {
		return fmt.Errorf("DEFENSE_TICK_INTERVAL must be positive")
	}
	if c.FeedSize <= 0 {
		return fmt.Errorf("FEED_SIZE must be positive")
	}
	if c.RNGSeed != 0 && c.Env == "production" {
		return fmt.Errorf("RNG_SEED must not be set in production")
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
