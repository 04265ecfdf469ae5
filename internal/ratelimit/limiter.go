// Package ratelimit provides a store-backed fixed-window action rate limiter.
//
// Each (action, key) pair gets a counter whose TTL is set by the first
// increment of a window and never refreshed by later ones. A burst that
// straddles a window boundary can therefore see up to twice the threshold
// in a short span; this limiter is meant for coarse abuse protection.
package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneutral-org/kvcoord/internal/kvstore"
	"github.com/kneutral-org/kvcoord/internal/metrics"
)

// DefaultExpiry is the default window length.
const DefaultExpiry = 60 * time.Second

// ActionRateLimiter counts invocations of one action per scoping key.
type ActionRateLimiter struct {
	store  kvstore.Store
	action string
	expiry time.Duration
	logger zerolog.Logger
}

// Option configures an ActionRateLimiter.
type Option func(*ActionRateLimiter)

// WithExpiry sets the window length.
func WithExpiry(d time.Duration) Option {
	return func(l *ActionRateLimiter) {
		l.expiry = d
	}
}

// WithLogger sets the logger used by LogRequest.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *ActionRateLimiter) {
		l.logger = logger
	}
}

// NewActionRateLimiter creates a limiter for action.
func NewActionRateLimiter(store kvstore.Store, action string, opts ...Option) *ActionRateLimiter {
	l := &ActionRateLimiter{
		store:  store,
		action: action,
		expiry: DefaultExpiry,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ActionRateLimiter) cacheKey(key string) string {
	return kvstore.Key(kvstore.NamespaceRateLimiter, l.action, key)
}

// Increment bumps the counter for key and returns the new count.
// The first increment of a window starts the window's TTL in the same
// atomic step, and a counter found without a TTL gets one, so a window
// always ends. Store errors are returned as-is; the limiter never fails
// open on its own.
func (l *ActionRateLimiter) Increment(ctx context.Context, key string) (int64, error) {
	return l.store.IncrWindow(ctx, l.cacheKey(key), l.expiry)
}

// Throttled increments the counter for key and reports whether it is now
// above threshold.
func (l *ActionRateLimiter) Throttled(ctx context.Context, key string, threshold int64) (bool, error) {
	n, err := l.Increment(ctx, key)
	if err != nil {
		return false, err
	}
	if n > threshold {
		metrics.RecordActionThrottled(l.action)
		return true, nil
	}
	return false, nil
}

// Count returns the current count for key without incrementing it.
func (l *ActionRateLimiter) Count(ctx context.Context, key string) (int64, error) {
	v, err := l.store.Get(ctx, l.cacheKey(key))
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, kvstore.ErrNotInteger
	}
	return n, nil
}

// ResetIn returns how long until the current window for key closes.
// It is zero or negative when no window is open.
func (l *ActionRateLimiter) ResetIn(ctx context.Context, key string) (time.Duration, error) {
	return l.store.TTL(ctx, l.cacheKey(key))
}

// Action returns the action name.
func (l *ActionRateLimiter) Action() string {
	return l.action
}

// Expiry returns the window length.
func (l *ActionRateLimiter) Expiry() time.Duration {
	return l.expiry
}

// LogRequest writes a structured entry for a throttled request.
func (l *ActionRateLimiter) LogRequest(r *http.Request, userID string) {
	event := l.logger.Warn().
		Str("type", "action_rate_limiter").
		Str("action", l.action).
		Str("remoteAddr", r.RemoteAddr).
		Str("method", r.Method).
		Str("path", r.URL.Path)

	if userID != "" {
		event.Str("userId", userID)
	}

	event.Msg("action rate limit exceeded")
}
