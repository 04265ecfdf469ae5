package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRenewInterval is used when NewLeaseKeeper gets a non-positive interval.
const DefaultRenewInterval = 20 * time.Second

// LeaseKeeper extends a held lock on a fixed cadence until it is stopped or
// an extension fails. After a failed extension the keeper gives up; the lock
// is considered lost and is not reacquired.
type LeaseKeeper struct {
	lock     DistributedLock
	logger   zerolog.Logger
	interval time.Duration

	lost   atomic.Bool
	onLost func()

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// KeeperOption configures a LeaseKeeper.
type KeeperOption func(*LeaseKeeper)

// WithOnLost sets a callback that's called once when an extension fails.
func WithOnLost(fn func()) KeeperOption {
	return func(k *LeaseKeeper) {
		k.onLost = fn
	}
}

// NewLeaseKeeper creates a keeper for lock. interval should be well below
// the lock TTL (e.g., TTL/3); a non-positive one means DefaultRenewInterval.
func NewLeaseKeeper(lock DistributedLock, interval time.Duration, logger zerolog.Logger, opts ...KeeperOption) *LeaseKeeper {
	if interval <= 0 {
		interval = DefaultRenewInterval
	}
	k := &LeaseKeeper{
		lock:     lock,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Start begins extending the lock in the background.
func (k *LeaseKeeper) Start(ctx context.Context) {
	k.wg.Add(1)
	go k.run(ctx)
}

// Stop ends the renewal loop and waits for it to exit. It does not release
// the lock. Safe to call more than once.
func (k *LeaseKeeper) Stop() {
	k.stopOnce.Do(func() { close(k.stopCh) })
	k.wg.Wait()
}

// Lost returns true once an extension has failed.
func (k *LeaseKeeper) Lost() bool {
	return k.lost.Load()
}

func (k *LeaseKeeper) run(ctx context.Context) {
	defer k.wg.Done()

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-k.stopCh:
			return
		case <-ticker.C:
			if err := k.lock.Extend(ctx); err != nil {
				k.logger.Warn().Err(err).Msg("failed to extend lease, giving up")
				k.lost.Store(true)
				if k.onLost != nil {
					k.onLost()
				}
				return
			}
			k.logger.Debug().Msg("lease extended")
		}
	}
}
