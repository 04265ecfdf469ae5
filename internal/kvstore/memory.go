package kvstore

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// entry is a value with an optional expiry.
type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-memory implementation of Store for testing and development.
// All operations are serialized by a single mutex, which makes each of them atomic.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time

	stopCh    chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the time source. Used by tests to move time forward.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a new in-memory store.
// It starts a background goroutine to clean up expired entries.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.cleanupLoop()
	return s
}

// lookup returns the live entry for key, evicting it if expired.
// Caller must hold s.mu.
func (s *MemoryStore) lookup(key string) (*entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

// addLocked adds delta to the integer at key, keeping any existing TTL.
func (s *MemoryStore) addLocked(key string, delta int64) (int64, error) {
	e, ok := s.lookup(key)
	if !ok {
		e = &entry{value: "0"}
		s.entries[key] = e
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	n += delta
	e.value = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *MemoryStore) expireLocked(key string, ttl time.Duration) bool {
	e, ok := s.lookup(key)
	if !ok {
		return false
	}
	if ttl <= 0 {
		delete(s.entries, key)
		return true
	}
	e.expiresAt = s.now().Add(ttl)
	return true
}

func (s *MemoryStore) expiryFor(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// Incr implements Store.Incr.
func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(key, 1)
}

// Decr implements Store.Decr.
func (s *MemoryStore) Decr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(key, -1)
}

// Expire implements Store.Expire.
func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireLocked(key, ttl), nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

// Set implements Store.Set.
func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &entry{value: value, expiresAt: s.expiryFor(ttl)}
	return nil
}

// SetNX implements Store.SetNX.
func (s *MemoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.entries[key] = &entry{value: value, expiresAt: s.expiryFor(ttl)}
	return true, nil
}

// Del implements Store.Del.
func (s *MemoryStore) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, k := range keys {
		if _, ok := s.lookup(k); ok {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// Exists implements Store.Exists.
func (s *MemoryStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, k := range keys {
		if _, ok := s.lookup(k); ok {
			n++
		}
	}
	return n, nil
}

// TTL implements Store.TTL. Mirrors Redis PTTL: -2 for a missing key,
// -1 for a key without expiry.
func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return -2, nil
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(s.now()), nil
}

// IncrExpire implements Store.IncrExpire.
func (s *MemoryStore) IncrExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.addLocked(key, 1)
	if err != nil {
		return 0, err
	}
	s.expireLocked(key, ttl)
	return n, nil
}

// IncrWindow implements Store.IncrWindow.
func (s *MemoryStore) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.addLocked(key, 1)
	if err != nil {
		return 0, err
	}
	if e := s.entries[key]; n == 1 || e.expiresAt.IsZero() {
		s.expireLocked(key, ttl)
	}
	return n, nil
}

// DecrFloor implements Store.DecrFloor.
func (s *MemoryStore) DecrFloor(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.addLocked(key, -1)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		delete(s.entries, key)
	}
	return n, nil
}

// CompareAndDelete implements Store.CompareAndDelete.
func (s *MemoryStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok || e.value != value {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// CompareAndExpire implements Store.CompareAndExpire.
func (s *MemoryStore) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok || e.value != value {
		return false, nil
	}
	return s.expireLocked(key, ttl), nil
}

// Ping implements Store.Ping.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() { close(s.stopCh) })
}

// cleanupLoop periodically removes expired entries.
func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes all expired entries.
func (s *MemoryStore) cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries in the store, expired ones included
// until the next cleanup.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
