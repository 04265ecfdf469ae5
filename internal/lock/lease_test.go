package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusiveLease_TryObtain(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	lease := NewExclusiveLease(store, "project:1", 10*time.Second)

	token, err := lease.TryObtain(ctx)
	require.NoError(t, err)
	assert.Equal(t, lease.Token(), token)
	assert.True(t, lease.IsHeld())

	v, err := mr.Get("lease:project:1")
	require.NoError(t, err)
	assert.Equal(t, token, v)

	other := NewExclusiveLease(store, "project:1", 10*time.Second)
	token2, err := other.TryObtain(ctx)
	require.NoError(t, err)
	assert.Empty(t, token2)
	assert.False(t, other.IsHeld())
}

func TestExclusiveLease_ReleaseOnlyOwnLease(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	lease1 := NewExclusiveLease(store, "own", 10*time.Second, WithToken("instance-1"))
	lease2 := NewExclusiveLease(store, "own", 10*time.Second, WithToken("instance-2"))

	acquired, err := lease1.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// lease2 never obtained the lease, so Release is a no-op.
	require.NoError(t, lease2.Release(ctx))

	// Cancelling with the wrong token leaves the holder alone.
	require.NoError(t, Cancel(ctx, store, "own", "instance-2"))

	holder, err := lease1.HolderToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "instance-1", holder)
}

func TestExclusiveLease_ReleaseAfterExpiryKeepsNewHolder(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	first := NewExclusiveLease(store, "expired", time.Second, WithToken("first"))
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	second := NewExclusiveLease(store, "expired", time.Minute, WithToken("second"))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// The first holder still thinks it holds the lease; releasing must not
	// remove the second holder's key.
	require.NoError(t, first.Release(ctx))

	holder, err := second.HolderToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", holder)
}

func TestExclusiveLease_Release(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	lease := NewExclusiveLease(store, "release", 10*time.Second)
	ok, err := lease.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lease.Release(ctx))
	assert.False(t, lease.IsHeld())

	exists, err := lease.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	ok, err = NewExclusiveLease(store, "release", 10*time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lease should be obtainable after release")
}

func TestExclusiveLease_Extend(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	lease := NewExclusiveLease(store, "extend", 5*time.Second)
	ok, err := lease.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(3 * time.Second)
	require.NoError(t, lease.Extend(ctx))

	ttl, err := lease.TTL(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, ttl)
}

func TestExclusiveLease_ExtendNotHeld(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	lease := NewExclusiveLease(store, "extend-notheld", 5*time.Second)
	assert.ErrorIs(t, lease.Extend(ctx), ErrLockNotHeld)

	ok, err := lease.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)
	assert.ErrorIs(t, lease.Extend(ctx), ErrLockNotHeld)
	assert.False(t, lease.IsHeld())
}

func TestExclusiveLease_HolderTokenWhenFree(t *testing.T) {
	store, _ := newTestStore(t)

	holder, err := NewExclusiveLease(store, "free", time.Second).HolderToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, holder)
}

func TestCancel_EmptyTokenIsNoop(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	// No store round trip happens, so a dead store does not matter.
	assert.NoError(t, Cancel(context.Background(), store, "anything", ""))
}

func TestExclusiveLease_ImplementsDistributedLock(t *testing.T) {
	store, _ := newTestStore(t)
	var _ DistributedLock = NewExclusiveLease(store, "iface", time.Second)
}
