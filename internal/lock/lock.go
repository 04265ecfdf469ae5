// Package lock provides store-backed mutual exclusion: a single-shot
// self-expiring lock, token-matched exclusive leases, and a blocking
// helper that runs a critical section under a lease.
package lock

import (
	"context"
	"errors"
)

// Common errors for locking operations.
var (
	// ErrLockNotHeld is returned when trying to extend a lease that is not held.
	ErrLockNotHeld = errors.New("lock not held by this instance")

	// ErrEmptyKey is returned when a lock or lease is requested without a key.
	ErrEmptyKey = errors.New("lock key must not be empty")
)

// DistributedLock defines the interface for a distributed lock.
// Implementations must be safe for concurrent use.
type DistributedLock interface {
	// Acquire attempts to acquire the lock.
	// Returns true if the lock was successfully acquired, false if it's already held.
	// The lock will automatically expire after the configured TTL.
	Acquire(ctx context.Context) (bool, error)

	// Release releases the lock if it's held by this instance.
	// It's safe to call Release even if the lock is not held.
	Release(ctx context.Context) error

	// Extend extends the lock's TTL.
	// Returns an error if the lock is not held by this instance.
	Extend(ctx context.Context) error

	// IsHeld returns true if this instance currently holds the lock.
	IsHeld() bool
}
