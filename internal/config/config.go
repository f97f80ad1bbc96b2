package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         string
	DatabaseURL  string
	TaxRate      float64
	OrderPrefix  string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Load reads configuration from the environment with sensible defaults. An
// empty DATABASE_URL selects the in-memory store.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	taxRate := 0.10
	if raw := os.Getenv("TAX_RATE"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
			taxRate = v
		}
	}

	prefix := os.Getenv("ORDER_PREFIX")
	if prefix == "" {
		prefix = "RNT"
	}

	maxRetries := 3
	if raw := os.Getenv("BOOKING_MAX_RETRIES"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			maxRetries = v
		}
	}

	backoff := 50 * time.Millisecond
	if raw := os.Getenv("BOOKING_RETRY_BACKOFF"); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil && v > 0 {
			backoff = v
		}
	}

	return &Config{
		Port:         port,
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		TaxRate:      taxRate,
		OrderPrefix:  prefix,
		MaxRetries:   maxRetries,
		RetryBackoff: backoff,
	}
}
