package lock

import (
	"context"
	"time"

	"github.com/kneutral-org/kvcoord/internal/kvstore"
	"github.com/kneutral-org/kvcoord/internal/metrics"
)

// ExpiringLock is a single-shot lock built on an atomic increment.
// Whoever moves the counter from 0 to 1 holds the lock until the TTL lapses.
// It carries no owner identity, so Locked cannot tell who holds it.
type ExpiringLock struct {
	store kvstore.Store
	name  string
	key   string
	ttl   time.Duration
}

// NewExpiringLock creates an ExpiringLock for key with the given TTL.
func NewExpiringLock(store kvstore.Store, key string, ttl time.Duration) *ExpiringLock {
	return &ExpiringLock{
		store: store,
		name:  key,
		key:   kvstore.Key(kvstore.NamespaceLock, key),
		ttl:   ttl,
	}
}

// TryLock attempts to take the lock. Only the caller whose increment returns 1
// sets the TTL, so contention never extends the current holder's expiry.
func (l *ExpiringLock) TryLock(ctx context.Context) (bool, error) {
	n, err := l.store.Incr(ctx, l.key)
	if err != nil {
		metrics.RecordLockAcquire("expiring", "error")
		return false, err
	}
	if n != 1 {
		metrics.RecordLockAcquire("expiring", "contended")
		return false, nil
	}

	if _, err := l.store.Expire(ctx, l.key, l.ttl); err != nil {
		// Without a TTL the key would never expire; drop it so the next
		// caller can retry.
		_, _ = l.store.Del(context.WithoutCancel(ctx), l.key)
		metrics.RecordLockAcquire("expiring", "error")
		return false, err
	}

	metrics.RecordLockAcquire("expiring", "acquired")
	return true, nil
}

// Locked reports whether anyone currently holds the lock.
func (l *ExpiringLock) Locked(ctx context.Context) (bool, error) {
	n, err := l.store.Exists(ctx, l.key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Unlock deletes the lock key. It does not check ownership.
func (l *ExpiringLock) Unlock(ctx context.Context) error {
	_, err := l.store.Del(ctx, l.key)
	return err
}

// Key returns the lock's name as passed to NewExpiringLock.
func (l *ExpiringLock) Key() string {
	return l.name
}

// TTL returns the lock's TTL duration.
func (l *ExpiringLock) TTL() time.Duration {
	return l.ttl
}
