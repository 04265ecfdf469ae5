package config

import (
	"os"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"PORT", "LOG_LEVEL", "LOG_PRETTY", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"REDIS_KEY_PREFIX", "DATABASE_URL",
	"RATE_LIMIT_WINDOW", "RATE_LIMIT_THRESHOLD", "REFERENCE_TTL", "JOB_WAIT_TIMEOUT",
}

func TestLoad_Defaults(t *testing.T) {
	// Clear any existing env vars
	for _, key := range configEnvKeys {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port '8080', got '%s'", cfg.Port)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected default redis addr, got '%s'", cfg.RedisAddr)
	}
	if cfg.RedisKeyPrefix != "kvcoord:" {
		t.Errorf("expected default key prefix 'kvcoord:', got '%s'", cfg.RedisKeyPrefix)
	}
	if cfg.RateLimitWindow != DefaultRateLimitWindow {
		t.Errorf("expected default rate limit window %v, got %v", DefaultRateLimitWindow, cfg.RateLimitWindow)
	}
	if cfg.ReferenceTTL != DefaultReferenceTTL {
		t.Errorf("expected default reference ttl %v, got %v", DefaultReferenceTTL, cfg.ReferenceTTL)
	}
	if cfg.JobWaitTimeout != DefaultJobWaitTimeout {
		t.Errorf("expected default job wait timeout %v, got %v", DefaultJobWaitTimeout, cfg.JobWaitTimeout)
	}
	if cfg.LogPretty {
		t.Error("expected pretty logging to be off by default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("JOB_WAIT_TIMEOUT", "2m")
	t.Setenv("RATE_LIMIT_WINDOW", "250ms")
	t.Setenv("RATE_LIMIT_THRESHOLD", "5")
	t.Setenv("REFERENCE_TTL", "30") // bare seconds

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port '9090', got '%s'", cfg.Port)
	}
	if cfg.RedisAddr != "redis:6380" {
		t.Errorf("expected redis addr 'redis:6380', got '%s'", cfg.RedisAddr)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.RedisDB)
	}
	if !cfg.LogPretty {
		t.Error("expected pretty logging")
	}
	if cfg.JobWaitTimeout != 2*time.Minute {
		t.Errorf("expected job wait timeout 2m, got %v", cfg.JobWaitTimeout)
	}
	if cfg.RateLimitWindow != 250*time.Millisecond {
		t.Errorf("expected rate limit window 250ms, got %v", cfg.RateLimitWindow)
	}
	if cfg.RateLimitThreshold != 5 {
		t.Errorf("expected threshold 5, got %d", cfg.RateLimitThreshold)
	}
	if cfg.ReferenceTTL != 30*time.Second {
		t.Errorf("expected reference ttl 30s, got %v", cfg.ReferenceTTL)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("JOB_WAIT_TIMEOUT", "forever")
	t.Setenv("RATE_LIMIT_THRESHOLD", "invalid")

	cfg := Load()

	if cfg.RedisDB != 0 {
		t.Errorf("expected default redis db for invalid value, got %d", cfg.RedisDB)
	}
	if cfg.JobWaitTimeout != DefaultJobWaitTimeout {
		t.Errorf("expected default job wait timeout for invalid value, got %v", cfg.JobWaitTimeout)
	}
	if cfg.RateLimitThreshold != DefaultRateLimitThreshold {
		t.Errorf("expected default threshold for invalid value, got %d", cfg.RateLimitThreshold)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue string
		expected     string
	}{
		{"env set", "TEST_KEY", "env_value", "default", "env_value"},
		{"env not set", "TEST_KEY_MISSING", "", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			result := getEnvOrDefault(tt.key, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestGetEnvInt64OrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue int64
		expected     int64
	}{
		{"valid int64", "TEST_INT64", "12345", 0, 12345},
		{"invalid int64", "TEST_INT64_INVALID", "abc", 999, 999},
		{"not set", "TEST_INT64_MISSING", "", 888, 888},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = os.Unsetenv(tt.key)
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			result := getEnvInt64OrDefault(tt.key, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestGetEnvDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"duration string", "1m30s", 90 * time.Second},
		{"bare seconds", "45", 45 * time.Second},
		{"negative", "-5s", time.Hour},
		{"garbage", "soon", time.Hour},
		{"not set", "", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = os.Unsetenv("TEST_DURATION")
			if tt.envValue != "" {
				t.Setenv("TEST_DURATION", tt.envValue)
			}

			result := getEnvDurationOrDefault("TEST_DURATION", time.Hour)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestGetEnvBoolOrDefault(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes-please")
	if !getEnvBoolOrDefault("TEST_BOOL", true) {
		t.Error("expected default for unparsable bool")
	}

	t.Setenv("TEST_BOOL", "false")
	if getEnvBoolOrDefault("TEST_BOOL", true) {
		t.Error("expected false")
	}
}
