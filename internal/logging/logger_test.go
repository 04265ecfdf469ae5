// Package logging provides structured logging utilities.
package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-service", "info")

	assert.NotNil(t, logger)
}

func TestNewLogger_ParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger("test-service", tt.level)
			assert.Equal(t, tt.expected, logger.GetLevel())
		})
	}
}

func TestNewPrettyLogger(t *testing.T) {
	logger := NewPrettyLogger("test-service", "debug")

	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}

func TestContextWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithLogger(context.Background(), logger)
	extracted, ok := LoggerFromContext(ctx)
	require.True(t, ok)
	extracted.Info().Msg("from context")

	assert.Contains(t, buf.String(), "from context")

	_, ok = LoggerFromContext(context.Background())
	assert.False(t, ok)
}

func TestRequestLogger_AttachesLoggerToContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	router := gin.New()
	router.Use(RequestLogger(zerolog.New(&buf)))
	router.GET("/inner", func(c *gin.Context) {
		logger, ok := LoggerFromContext(c.Request.Context())
		assert.True(t, ok)
		logger.Info().Msg("inside handler")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/inner", nil)
	req.Header.Set("X-Request-ID", "req-9")
	router.ServeHTTP(httptest.NewRecorder(), req)

	var handlerLine string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "inside handler") {
			handlerLine = line
		}
	}
	require.NotEmpty(t, handlerLine)
	assert.Contains(t, handlerLine, `"requestId":"req-9"`)
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := ComponentLogger(zerolog.New(&buf), "reference-counter")

	logger.Warn().Msg("reset")

	assert.Contains(t, buf.String(), `"component":"reference-counter"`)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		statusCode int
		level      string
	}{
		{"success", http.StatusOK, `"level":"info"`},
		{"client_error", http.StatusTooManyRequests, `"level":"warn"`},
		{"server_error", http.StatusServiceUnavailable, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			router := gin.New()
			router.Use(RequestLogger(logger))
			router.GET("/test/path", func(c *gin.Context) {
				c.Status(tt.statusCode)
			})

			req := httptest.NewRequest("GET", "/test/path?query=value", nil)
			req.Header.Set("X-Request-ID", "req-1")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tt.statusCode, rec.Code)

			logOutput := buf.String()
			assert.Contains(t, logOutput, "http_request")
			assert.Contains(t, logOutput, "/test/path")
			assert.Contains(t, logOutput, `"requestId":"req-1"`)
			assert.Contains(t, logOutput, tt.level)
		})
	}
}
