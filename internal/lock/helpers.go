package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneutral-org/kvcoord/internal/kvstore"
	"github.com/kneutral-org/kvcoord/internal/metrics"
)

// Defaults for InLock.
const (
	DefaultLeaseTTL   = time.Minute
	DefaultRetries    = 10
	DefaultSleepDelay = 10 * time.Millisecond
)

// ErrFailedToObtainLock matches every FailedToObtainLockError via errors.Is.
var ErrFailedToObtainLock = errors.New("failed to obtain a lock")

// FailedToObtainLockError is returned by InLock when the retry budget runs
// out before the lease could be obtained.
type FailedToObtainLockError struct {
	Key      string
	Attempts int
}

func (e *FailedToObtainLockError) Error() string {
	return fmt.Sprintf("failed to obtain a lock on %q after %d attempts", e.Key, e.Attempts)
}

// Is lets errors.Is(err, ErrFailedToObtainLock) match.
func (e *FailedToObtainLockError) Is(target error) bool {
	return target == ErrFailedToObtainLock
}

// SleepInterval decides how long InLock waits before the next attempt.
// It is either a fixed delay or a function of the attempt number (1-based).
type SleepInterval struct {
	fixed   time.Duration
	backoff func(attempt int) time.Duration
}

// FixedDelay waits the same duration before every retry.
func FixedDelay(d time.Duration) SleepInterval {
	return SleepInterval{fixed: d}
}

// BackoffFunc computes the delay from the number of the attempt that just failed.
func BackoffFunc(fn func(attempt int) time.Duration) SleepInterval {
	return SleepInterval{backoff: fn}
}

// Delay returns the wait after the given failed attempt.
func (s SleepInterval) Delay(attempt int) time.Duration {
	if s.backoff != nil {
		return s.backoff(attempt)
	}
	return s.fixed
}

type inLockConfig struct {
	ttl     time.Duration
	retries int
	sleep   SleepInterval
	renew   time.Duration
	logger  zerolog.Logger
}

// InLockOption configures InLock.
type InLockOption func(*inLockConfig)

// WithTTL sets the lease duration.
func WithTTL(ttl time.Duration) InLockOption {
	return func(c *inLockConfig) {
		c.ttl = ttl
	}
}

// WithRetries sets how many attempts are made after the first one fails.
func WithRetries(n int) InLockOption {
	return func(c *inLockConfig) {
		if n < 0 {
			n = 0
		}
		c.retries = n
	}
}

// WithSleep sets the delay between attempts.
func WithSleep(s SleepInterval) InLockOption {
	return func(c *inLockConfig) {
		c.sleep = s
	}
}

// WithRenewEvery keeps the lease alive while the critical section runs by
// extending it every d. If an extension fails, the context passed to the
// critical section is cancelled. Zero disables renewal.
func WithRenewEvery(d time.Duration) InLockOption {
	return func(c *inLockConfig) {
		c.renew = d
	}
}

// WithLogger sets the logger used to report release failures.
func WithLogger(logger zerolog.Logger) InLockOption {
	return func(c *inLockConfig) {
		c.logger = logger
	}
}

// CriticalSection runs while the lease is held. retried is true when the
// lease was not obtained on the first attempt.
type CriticalSection func(ctx context.Context, retried bool) error

// InLock blocks until the lease on key is obtained, runs fn exactly once and
// then releases the lease, also when fn returns an error or panics.
// If the retry budget is exhausted, fn is not called and the returned error
// matches ErrFailedToObtainLock. Cancelling ctx aborts the wait between attempts.
func InLock(ctx context.Context, store kvstore.Store, key string, fn CriticalSection, opts ...InLockOption) (err error) {
	if key == "" {
		return ErrEmptyKey
	}

	cfg := inLockConfig{
		ttl:     DefaultLeaseTTL,
		retries: DefaultRetries,
		sleep:   FixedDelay(DefaultSleepDelay),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	lease := NewExclusiveLease(store, key, cfg.ttl)
	start := time.Now()

	var token string
	retried := false
	for attempt := 1; ; attempt++ {
		token, err = lease.TryObtain(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			break
		}
		if attempt > cfg.retries {
			metrics.RecordLeaseWait("failed", time.Since(start).Seconds())
			return &FailedToObtainLockError{Key: key, Attempts: attempt}
		}
		if err := sleepContext(ctx, cfg.sleep.Delay(attempt)); err != nil {
			return err
		}
		retried = true
	}
	metrics.RecordLeaseWait("obtained", time.Since(start).Seconds())

	defer func() {
		// Release even if the caller's context is already done.
		relErr := Cancel(context.WithoutCancel(ctx), store, key, token)
		if relErr == nil {
			return
		}
		cfg.logger.Warn().Err(relErr).Str("key", key).Msg("failed to release lease, it will expire on its own")
		if err == nil {
			err = fmt.Errorf("release lease %q: %w", key, relErr)
		}
	}()

	if cfg.renew <= 0 {
		return fn(ctx, retried)
	}

	fnCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	keeper := NewLeaseKeeper(lease, cfg.renew, cfg.logger.With().Str("key", key).Logger(),
		WithOnLost(func() { cancel(ErrLockNotHeld) }),
	)
	keeper.Start(fnCtx)
	defer keeper.Stop()

	return fn(fnCtx, retried)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
