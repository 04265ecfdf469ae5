// Package refcount tracks how many holders reference a shared resource so
// it can be reclaimed once nobody uses it.
package refcount

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneutral-org/kvcoord/internal/kvstore"
	"github.com/kneutral-org/kvcoord/internal/metrics"
)

// DefaultExpiry is how long a counter survives without being increased.
const DefaultExpiry = 600 * time.Second

// ReferenceCounter is a store-backed counter that never goes below zero.
// Each increase refreshes the TTL, so a counter abandoned by crashed
// holders eventually disappears.
type ReferenceCounter struct {
	store    kvstore.Store
	resource string
	key      string
	expiry   time.Duration
	logger   zerolog.Logger
}

// Option configures a ReferenceCounter.
type Option func(*ReferenceCounter)

// WithExpiry sets the TTL refreshed by Increase.
func WithExpiry(d time.Duration) Option {
	return func(r *ReferenceCounter) {
		r.expiry = d
	}
}

// WithLogger sets the logger for store failures and underflow warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *ReferenceCounter) {
		r.logger = logger
	}
}

// NewReferenceCounter creates a counter for resource.
func NewReferenceCounter(store kvstore.Store, resource string, opts ...Option) *ReferenceCounter {
	r := &ReferenceCounter{
		store:    store,
		resource: resource,
		key:      kvstore.Key(kvstore.NamespaceReference, resource),
		expiry:   DefaultExpiry,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "reference-counter").Str("resource", resource).Logger()
	return r
}

// Value returns the current count, 0 when the counter does not exist.
func (r *ReferenceCounter) Value(ctx context.Context) (int64, error) {
	v, err := r.store.Get(ctx, r.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("reference counter %q: %w", r.resource, kvstore.ErrNotInteger)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// Increase adds a reference and refreshes the TTL in a single round trip.
// A store failure is logged and returned; callers usually treat it as
// "state unknown" rather than a fatal error.
func (r *ReferenceCounter) Increase(ctx context.Context) error {
	if _, err := r.store.IncrExpire(ctx, r.key, r.expiry); err != nil {
		metrics.RecordReferenceStoreError("increase")
		r.logger.Warn().Err(err).Msg("failed to increase reference counter")
		return fmt.Errorf("increase reference counter %q: %w", r.resource, err)
	}
	return nil
}

// Decrease drops a reference. Going below zero means a caller released more
// than it took; the counter is reset and a warning is logged, no error.
func (r *ReferenceCounter) Decrease(ctx context.Context) error {
	n, err := r.store.DecrFloor(ctx, r.key)
	if err != nil {
		metrics.RecordReferenceStoreError("decrease")
		r.logger.Warn().Err(err).Msg("failed to decrease reference counter")
		return fmt.Errorf("decrease reference counter %q: %w", r.resource, err)
	}
	if n < 0 {
		metrics.RecordReferenceUnderflow()
		r.logger.Warn().
			Int64("value", n).
			Msg("reference counter decreased below zero, resetting the counter")
	}
	return nil
}

// Reset removes the counter.
func (r *ReferenceCounter) Reset(ctx context.Context) error {
	if _, err := r.store.Del(ctx, r.key); err != nil {
		metrics.RecordReferenceStoreError("reset")
		return fmt.Errorf("reset reference counter %q: %w", r.resource, err)
	}
	return nil
}

// Resource returns the tracked resource name.
func (r *ReferenceCounter) Resource() string {
	return r.resource
}
