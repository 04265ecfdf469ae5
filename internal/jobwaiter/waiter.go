// Package jobwaiter blocks until a set of asynchronously dispatched jobs
// has completed, by polling a completion predicate.
package jobwaiter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneutral-org/kvcoord/internal/metrics"
)

// Defaults for JobWaiter.
const (
	DefaultInterval = 100 * time.Millisecond
	DefaultTimeout  = 60 * time.Second
)

// StatusChecker reports whether every job in ids has completed.
// jobstatus.Tracker and jobstatus.PostgresChecker implement it.
type StatusChecker interface {
	AllCompleted(ctx context.Context, ids []string) (bool, error)
}

// JobWaiter waits on a fixed set of job IDs.
type JobWaiter struct {
	checker  StatusChecker
	jobs     []string
	interval time.Duration
	logger   zerolog.Logger
}

// Option configures a JobWaiter.
type Option func(*JobWaiter)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(w *JobWaiter) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger for checker failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *JobWaiter) {
		w.logger = logger
	}
}

// New creates a waiter for jobs. The slice is copied.
func New(checker StatusChecker, jobs []string, opts ...Option) *JobWaiter {
	w := &JobWaiter{
		checker:  checker,
		jobs:     append([]string(nil), jobs...),
		interval: DefaultInterval,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Jobs returns a copy of the job IDs being waited on.
func (w *JobWaiter) Jobs() []string {
	return append([]string(nil), w.jobs...)
}

// Wait polls until all jobs have completed, timeout elapses or ctx is done,
// whichever comes first. A non-positive timeout means DefaultTimeout.
// It does not report which of these happened; callers that need to know
// must check job state themselves. Checker errors are logged and treated
// as "not yet completed".
func (w *JobWaiter) Wait(ctx context.Context, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	start := time.Now()
	deadline := start.Add(timeout)

	outcome := "timeout"
	defer func() {
		metrics.RecordJobWait(outcome, time.Since(start).Seconds())
	}()

	for {
		done, err := w.checker.AllCompleted(ctx, w.jobs)
		if err != nil {
			w.logger.Warn().Err(err).Int("jobs", len(w.jobs)).Msg("failed to check job status")
		} else if done {
			outcome = "completed"
			return
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}

		delay := w.interval
		if remaining < delay {
			delay = remaining
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			outcome = "canceled"
			return
		case <-timer.C:
		}
	}
}
