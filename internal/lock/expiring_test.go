package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiringLock_TryLock(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	lock := NewExpiringLock(store, "import:42", 10*time.Second)

	ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "first TryLock should win")

	ok, err = lock.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second TryLock should lose")

	assert.True(t, mr.Exists("lock:import:42"))
	assert.Equal(t, 10*time.Second, mr.TTL("lock:import:42"))
}

func TestExpiringLock_ContentionDoesNotExtendTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	lock := NewExpiringLock(store, "ttl", 10*time.Second)
	ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)
	ok, err = lock.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 4*time.Second, mr.TTL("lock:ttl"))
}

func TestExpiringLock_LockedUntilTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	lock := NewExpiringLock(store, "visible", 5*time.Second)

	locked, err := lock.Locked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)

	ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	locked, err = lock.Locked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	mr.FastForward(5 * time.Second)

	locked, err = lock.Locked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)

	ok, err = lock.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lock should be free again after the ttl")
}

func TestExpiringLock_ConcurrentTryLock(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	const workers = 10
	results := make(chan bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := NewExpiringLock(store, "race", time.Minute).TryLock(ctx)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one caller should acquire the lock")
}

func TestExpiringLock_Unlock(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	lock := NewExpiringLock(store, "unlock", time.Minute)
	ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Unlock(ctx))

	ok, err = lock.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpiringLock_StoreError(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	ok, err := NewExpiringLock(store, "down", time.Minute).TryLock(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestExpiringLock_KeyAndTTL(t *testing.T) {
	store, _ := newTestStore(t)

	lock := NewExpiringLock(store, "getters", 30*time.Second)

	assert.Equal(t, "getters", lock.Key())
	assert.Equal(t, 30*time.Second, lock.TTL())
}
