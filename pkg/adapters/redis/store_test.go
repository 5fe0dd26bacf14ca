package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/ports"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStoreContract(t *testing.T) {
	_, client := newTestClient(t)
	ports.RunCheckpointStoreContract(t, NewFromClient(client))
}

func TestStorePrefixIsolation(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	a := NewFromClient(client, WithPrefix("tenant-a:"))
	b := NewFromClient(client, WithPrefix("tenant-b:"))

	require.NoError(t, a.Put(ctx, "c1", domain.NewState("c1", "chat", "start")))

	_, err := b.Get(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	ids, err := b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStoreTTLExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	store := NewFromClient(client, WithTTL(time.Second))
	require.NoError(t, store.Put(ctx, "c1", domain.NewState("c1", "chat", "start")))

	mr.FastForward(2 * time.Second)

	_, err := store.Get(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "expired conversations must be pruned from the index")
}

func TestLockerMutualExclusion(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewLocker(client, "lattice:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "conv-1", 10*time.Second)
	require.NoError(t, err)

	// A second holder must not get in while the lock is held.
	blocked, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(blocked, "conv-1", 10*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockAcquire)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "conv-1", 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLockerUnlockIsValueChecked(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewLocker(client, "lattice:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "conv-1", time.Second)
	require.NoError(t, err)

	// Simulate expiry and re-acquisition by someone else.
	mr.FastForward(2 * time.Second)
	unlockOther, err := locker.Lock(ctx, "conv-1", 10*time.Second)
	require.NoError(t, err)

	// The stale holder's release must not remove the new lock.
	require.NoError(t, unlock(ctx))
	val, err := mr.Get("lattice:lock:conv-1")
	require.NoError(t, err)
	assert.NotEmpty(t, val)

	require.NoError(t, unlockOther(ctx))
}
