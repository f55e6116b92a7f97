package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPresenceStore_AddConnection(t *testing.T) {
	store := NewMemoryPresenceStore()
	ctx := context.Background()

	// First connection is an offline -> online transition
	wasOffline, err := store.AddConnection(ctx, "alice", "conn-1")
	require.NoError(t, err)
	assert.True(t, wasOffline)

	online, err := store.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online)

	// Second device: no transition
	wasOffline, err = store.AddConnection(ctx, "alice", "conn-2")
	require.NoError(t, err)
	assert.False(t, wasOffline)

	conns, err := store.ConnectionsFor(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"conn-1", "conn-2"}, conns)
}

func TestMemoryPresenceStore_SingleOfflineTransition(t *testing.T) {
	store := NewMemoryPresenceStore()
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		_, err := store.AddConnection(ctx, "alice", fmt.Sprintf("conn-%d", i))
		require.NoError(t, err)
	}

	// Removing all N connections must report exactly one online -> offline
	// transition, on the last removal.
	transitions := 0
	for i := 0; i < n; i++ {
		becameOffline, err := store.RemoveConnection(ctx, "alice", fmt.Sprintf("conn-%d", i))
		require.NoError(t, err)
		if becameOffline {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)

	online, err := store.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestMemoryPresenceStore_RemoveUnknownConnection(t *testing.T) {
	store := NewMemoryPresenceStore()
	ctx := context.Background()

	_, err := store.AddConnection(ctx, "alice", "conn-1")
	require.NoError(t, err)

	// Never-added connection id is a no-op
	becameOffline, err := store.RemoveConnection(ctx, "alice", "conn-x")
	require.NoError(t, err)
	assert.False(t, becameOffline)

	becameOffline, err = store.RemoveConnection(ctx, "bob", "conn-1")
	require.NoError(t, err)
	assert.False(t, becameOffline)

	online, err := store.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online, "other users' presence must be unaffected")
}

func TestMemoryPresenceStore_ListOnline(t *testing.T) {
	store := NewMemoryPresenceStore()
	ctx := context.Background()

	_, err := store.AddConnection(ctx, "u1", "c1")
	require.NoError(t, err)
	_, err = store.AddConnection(ctx, "u2", "c2")
	require.NoError(t, err)
	_, err = store.RemoveConnection(ctx, "u1", "c1")
	require.NoError(t, err)

	users, err := store.ListOnline(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u2"}, users)

	count, err := store.CountOnline(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryPresenceStore_LastSeenMonotonic(t *testing.T) {
	store := NewMemoryPresenceStore()
	ctx := context.Background()

	require.NoError(t, store.TouchLastSeen(ctx, "alice"))
	first, err := store.LastSeenAt(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, first.IsZero())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.TouchLastSeen(ctx, "alice"))
	second, err := store.LastSeenAt(ctx, "alice")
	require.NoError(t, err)

	assert.False(t, second.Before(first), "later heartbeat must not move last seen backwards")
}

func TestMemoryPresenceStore_LastSeenUnknownUser(t *testing.T) {
	store := NewMemoryPresenceStore()

	seen, err := store.LastSeenAt(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, seen.IsZero())
}

func TestMemoryPresenceStore_ConcurrentAdds(t *testing.T) {
	store := NewMemoryPresenceStore()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wasOffline, err := store.AddConnection(ctx, "alice", fmt.Sprintf("conn-%d", i))
			assert.NoError(t, err)
			if wasOffline {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, transitions, "concurrent adds must report at most one online transition")
}

func TestMemoryPresenceStore_PurgeInactive(t *testing.T) {
	store := NewMemoryPresenceStore()
	ctx := context.Background()

	_, err := store.AddConnection(ctx, "stale", "c1")
	require.NoError(t, err)
	_, err = store.AddConnection(ctx, "fresh", "c2")
	require.NoError(t, err)

	// Backdate the stale user's heartbeat
	store.mu.Lock()
	store.lastSeen["stale"] = time.Now().Add(-2 * time.Hour)
	store.mu.Unlock()

	removed, err := store.PurgeInactive(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	users, err := store.ListOnline(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fresh"}, users)
}

func TestMemoryPresenceStore_Clear(t *testing.T) {
	store := NewMemoryPresenceStore()
	ctx := context.Background()

	_, err := store.AddConnection(ctx, "alice", "c1")
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx))

	count, err := store.CountOnline(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	seen, err := store.LastSeenAt(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, seen.IsZero())
}
