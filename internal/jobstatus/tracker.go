// Package jobstatus records which dispatched background jobs are still
// running, so waiters can ask whether a batch has completed.
package jobstatus

import (
	"context"
	"time"

	"github.com/kneutral-org/kvcoord/internal/kvstore"
)

// DefaultExpiry bounds how long a job is reported as running if its worker
// dies without unsetting the status.
const DefaultExpiry = 30 * time.Minute

// Tracker stores one key per running job. Absence of the key means the job
// completed (or never existed, or its status expired).
type Tracker struct {
	store kvstore.Store
}

// NewTracker creates a Tracker on top of store.
func NewTracker(store kvstore.Store) *Tracker {
	return &Tracker{store: store}
}

func statusKey(id string) string {
	return kvstore.Key(kvstore.NamespaceJobStatus, id)
}

// Set marks id as running for at most ttl. A zero ttl uses DefaultExpiry.
func (t *Tracker) Set(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	return t.store.Set(ctx, statusKey(id), "1", ttl)
}

// Unset marks id as completed.
func (t *Tracker) Unset(ctx context.Context, id string) error {
	_, err := t.store.Del(ctx, statusKey(id))
	return err
}

// Running reports whether id is still running.
func (t *Tracker) Running(ctx context.Context, id string) (bool, error) {
	n, err := t.store.Exists(ctx, statusKey(id))
	return n > 0, err
}

// NumRunning returns how many of ids are still running. Duplicate ids are
// counted once.
func (t *Tracker) NumRunning(ctx context.Context, ids []string) (int, error) {
	keys := uniqueKeys(ids)
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := t.store.Exists(ctx, keys...)
	return int(n), err
}

// NumCompleted returns how many of ids are no longer running.
func (t *Tracker) NumCompleted(ctx context.Context, ids []string) (int, error) {
	running, err := t.NumRunning(ctx, ids)
	if err != nil {
		return 0, err
	}
	return len(uniqueKeys(ids)) - running, nil
}

// AllCompleted reports whether none of ids is running.
func (t *Tracker) AllCompleted(ctx context.Context, ids []string) (bool, error) {
	running, err := t.NumRunning(ctx, ids)
	if err != nil {
		return false, err
	}
	return running == 0, nil
}

func uniqueKeys(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, statusKey(id))
	}
	return keys
}
