package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv overlays configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("MERIDIAN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if logLevel := os.Getenv("MERIDIAN_LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}

	if threshold := os.Getenv("MERIDIAN_HEALTH_THRESHOLD"); threshold != "" {
		if v, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Thresholds.HealthThreshold = v
		}
	}

	if fails := os.Getenv("MERIDIAN_CONSECUTIVE_FAILURES"); fails != "" {
		if v, err := strconv.Atoi(fails); err == nil {
			cfg.Thresholds.ConsecutiveFailures = v
		}
	}

	if interval := os.Getenv("MERIDIAN_HEALTH_CHECK_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Monitor.HealthCheckInterval = d
		}
	}

	if interval := os.Getenv("MERIDIAN_EVALUATION_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Monitor.EvaluationInterval = d
		}
	}

	if dsn := os.Getenv("MERIDIAN_POSTGRES_DSN"); dsn != "" {
		cfg.Events.PostgresDSN = dsn
	}
}

// GetEnvOrDefault returns environment variable or default value.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
