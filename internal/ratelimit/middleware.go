package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// KeyFunc extracts the scoping key for a request.
type KeyFunc func(*gin.Context) string

// ClientIPKey scopes the limit to the client IP.
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// ForwardedUser reads the user set by an authenticating proxy in front of
// the service. It is empty for anonymous requests.
func ForwardedUser(c *gin.Context) string {
	return c.GetHeader("X-Forwarded-User")
}

// ErrorResponse represents the JSON response for rejected requests.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// Middleware returns a Gin middleware that rejects requests with 429 once the
// limiter's count for the request key exceeds threshold. Store failures are
// answered with 503 rather than letting the request through. userFn names
// the user in the throttling log entry; nil leaves it out.
func Middleware(limiter *ActionRateLimiter, threshold int64, keyFn, userFn KeyFunc, logger zerolog.Logger) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = ClientIPKey
	}
	if userFn == nil {
		userFn = func(*gin.Context) string { return "" }
	}

	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}

		throttled, err := limiter.Throttled(c.Request.Context(), key, threshold)
		if err != nil {
			logger.Error().
				Err(err).
				Str("action", limiter.Action()).
				Str("path", c.Request.URL.Path).
				Msg("rate limiter unavailable")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:      "rate_limiter_unavailable",
				Message:    "rate limiter is temporarily unavailable",
				StatusCode: http.StatusServiceUnavailable,
			})
			return
		}

		if !throttled {
			c.Next()
			return
		}

		limiter.LogRequest(c.Request, userFn(c))

		if ttl, err := limiter.ResetIn(c.Request.Context(), key); err == nil && ttl > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
		}

		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Error:      "rate_limited",
			Message:    "this endpoint has been requested too many times, try again later",
			StatusCode: http.StatusTooManyRequests,
		})
	}
}
