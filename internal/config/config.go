// Package config provides configuration management for kvcoord.
package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultRateLimitWindow is the default fixed window for the API rate limiter.
	DefaultRateLimitWindow = 60 * time.Second

	// DefaultRateLimitThreshold is the default number of requests allowed per window.
	DefaultRateLimitThreshold int64 = 300

	// DefaultReferenceTTL is the default reference counter expiry.
	DefaultReferenceTTL = 600 * time.Second

	// DefaultJobWaitTimeout is the default JobWaiter timeout.
	DefaultJobWaitTimeout = 60 * time.Second
)

// Config holds the application configuration.
type Config struct {
	// Port is the HTTP server port.
	Port string

	// LogLevel is the zerolog level name.
	LogLevel string

	// LogPretty switches to human readable console output.
	LogPretty bool

	// RedisAddr is the host:port of the Redis server.
	RedisAddr string

	// RedisPassword authenticates against Redis, if set.
	RedisPassword string

	// RedisDB selects the Redis logical database.
	RedisDB int

	// RedisKeyPrefix is prepended to every key written to Redis.
	RedisKeyPrefix string

	// DatabaseURL enables the Postgres job status checker when set.
	DatabaseURL string

	// RateLimitWindow and RateLimitThreshold configure the API rate limiter.
	RateLimitWindow    time.Duration
	RateLimitThreshold int64

	// ReferenceTTL is the reference counter expiry.
	ReferenceTTL time.Duration

	// JobWaitTimeout bounds JobWaiter.Wait.
	JobWaitTimeout time.Duration
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogPretty:          getEnvBoolOrDefault("LOG_PRETTY", false),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvIntOrDefault("REDIS_DB", 0),
		RedisKeyPrefix:     getEnvOrDefault("REDIS_KEY_PREFIX", "kvcoord:"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RateLimitWindow:    getEnvDurationOrDefault("RATE_LIMIT_WINDOW", DefaultRateLimitWindow),
		RateLimitThreshold: getEnvInt64OrDefault("RATE_LIMIT_THRESHOLD", DefaultRateLimitThreshold),
		ReferenceTTL:       getEnvDurationOrDefault("REFERENCE_TTL", DefaultReferenceTTL),
		JobWaitTimeout:     getEnvDurationOrDefault("JOB_WAIT_TIMEOUT", DefaultJobWaitTimeout),
	}

	return cfg
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64OrDefault returns the environment variable value as int64 or the default if not set or invalid.
func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable value as int or the default if not set or invalid.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable value as bool or the default if not set or invalid.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault parses a Go duration string ("30s", "10m").
// A bare integer is read as seconds.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
