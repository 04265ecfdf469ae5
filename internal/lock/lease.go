package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kneutral-org/kvcoord/internal/kvstore"
	"github.com/kneutral-org/kvcoord/internal/metrics"
)

// ExclusiveLease implements DistributedLock using SET NX with expiration.
// Each instance carries a unique token; release and renewal only act on the
// key while it still holds that token, so a lease that expired and was taken
// by another holder is never touched.
type ExclusiveLease struct {
	store   kvstore.Store
	name    string
	key     string
	token   string
	timeout time.Duration

	mu   sync.RWMutex
	held bool
}

// LeaseOption configures an ExclusiveLease.
type LeaseOption func(*ExclusiveLease)

// WithToken sets a custom token for the lease.
// It must be unique per holder or token-matched release loses its meaning.
func WithToken(token string) LeaseOption {
	return func(l *ExclusiveLease) {
		l.token = token
	}
}

// NewExclusiveLease creates a lease on key that expires after timeout.
// If no token is provided via WithToken, a random UUID is used.
func NewExclusiveLease(store kvstore.Store, key string, timeout time.Duration, opts ...LeaseOption) *ExclusiveLease {
	l := &ExclusiveLease{
		store:   store,
		name:    key,
		key:     leaseKey(key),
		token:   uuid.NewString(),
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func leaseKey(key string) string {
	return kvstore.Key(kvstore.NamespaceLease, key)
}

// TryObtain attempts to take the lease once. It returns the lease token on
// success and an empty string if another holder has it.
func (l *ExclusiveLease) TryObtain(ctx context.Context) (string, error) {
	ok, err := l.store.SetNX(ctx, l.key, l.token, l.timeout)
	if err != nil {
		metrics.RecordLockAcquire("lease", "error")
		return "", err
	}
	if !ok {
		metrics.RecordLockAcquire("lease", "contended")
		return "", nil
	}

	l.mu.Lock()
	l.held = true
	l.mu.Unlock()

	metrics.RecordLockAcquire("lease", "acquired")
	return l.token, nil
}

// Acquire implements DistributedLock.
func (l *ExclusiveLease) Acquire(ctx context.Context) (bool, error) {
	token, err := l.TryObtain(ctx)
	return token != "", err
}

// Renew resets the lease TTL if this instance still holds it.
func (l *ExclusiveLease) Renew(ctx context.Context) (bool, error) {
	ok, err := l.store.CompareAndExpire(ctx, l.key, l.token, l.timeout)
	if err != nil {
		return false, err
	}
	if !ok {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
	}
	return ok, nil
}

// Extend implements DistributedLock.
func (l *ExclusiveLease) Extend(ctx context.Context) error {
	if !l.IsHeld() {
		return ErrLockNotHeld
	}
	ok, err := l.Renew(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotHeld
	}
	return nil
}

// Release implements DistributedLock. It is a no-op when the lease is not held.
func (l *ExclusiveLease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return nil
	}
	if err := Cancel(ctx, l.store, l.name, l.token); err != nil {
		return err
	}
	l.held = false
	return nil
}

// IsHeld returns true if this instance believes it holds the lease.
// The lease may have expired in the store since it was obtained.
func (l *ExclusiveLease) IsHeld() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.held
}

// Exists reports whether anyone holds the lease right now.
func (l *ExclusiveLease) Exists(ctx context.Context) (bool, error) {
	n, err := l.store.Exists(ctx, l.key)
	return n > 0, err
}

// TTL returns the remaining lifetime of the current lease, or a negative
// duration if nobody holds it.
func (l *ExclusiveLease) TTL(ctx context.Context) (time.Duration, error) {
	return l.store.TTL(ctx, l.key)
}

// HolderToken returns the token of whoever currently holds the lease,
// or an empty string if the lease is free.
func (l *ExclusiveLease) HolderToken(ctx context.Context) (string, error) {
	v, err := l.store.Get(ctx, l.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Token returns this instance's token.
func (l *ExclusiveLease) Token() string {
	return l.token
}

// Key returns the lease name as passed to NewExclusiveLease.
func (l *ExclusiveLease) Key() string {
	return l.name
}

// Timeout returns the lease duration.
func (l *ExclusiveLease) Timeout() time.Duration {
	return l.timeout
}

// Cancel releases the lease on key only if it is still held under token.
// An empty token is a no-op.
func Cancel(ctx context.Context, store kvstore.Store, key, token string) error {
	if token == "" {
		return nil
	}
	released, err := store.CompareAndDelete(ctx, leaseKey(key), token)
	if err != nil {
		return err
	}
	if released {
		metrics.RecordLockRelease("lease")
	}
	return nil
}
