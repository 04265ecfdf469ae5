// Package kvstore defines the key-value store contract shared by the
// coordination primitives, with Redis and in-memory implementations.
package kvstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common errors for key-value store operations.
var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrUnavailable wraps any failure talking to the backing store.
	ErrUnavailable = errors.New("key-value store unavailable")

	// ErrNotInteger is returned when a counter operation hits a non-integer value.
	ErrNotInteger = errors.New("value is not an integer")
)

// Key namespaces. Each primitive owns one so their keys never collide.
const (
	NamespaceLock        = "lock"
	NamespaceLease       = "lease"
	NamespaceRateLimiter = "action_rate_limiter"
	NamespaceReference   = "reference"
	NamespaceJobStatus   = "job_status"
)

// Store is the contract the coordination primitives depend on.
// Every single-key operation must be atomic; implementations must be safe
// for concurrent use.
type Store interface {
	// Incr atomically increments the integer at key and returns the new value.
	// A missing key is treated as 0.
	Incr(ctx context.Context, key string) (int64, error)

	// Decr atomically decrements the integer at key and returns the new value.
	Decr(ctx context.Context, key string) (int64, error)

	// Expire sets a TTL on key. Returns false if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Get returns the value at key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A zero ttl means the key never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value only if key does not exist.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Exists returns how many of keys exist.
	Exists(ctx context.Context, keys ...string) (int64, error)

	// TTL returns the remaining time to live of key.
	// It is negative when the key has no expiry or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// IncrExpire increments key and (re)sets its TTL in one round trip.
	IncrExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// IncrWindow increments key and sets ttl when the increment created the
	// key or the key has no expiry, atomically. An existing TTL is never
	// extended, so the first increment fixes the end of the window.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// DecrFloor decrements key and deletes it if the result is negative,
	// atomically. The raw post-decrement value is returned so callers can
	// detect underflow; the stored value is never left negative.
	DecrFloor(ctx context.Context, key string) (int64, error)

	// CompareAndDelete deletes key only if it currently holds value.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)

	// CompareAndExpire resets the TTL of key only if it currently holds value.
	CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// Key joins a namespace and its parts into a single store key.
func Key(namespace string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}
