package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"musanzehub.com/hub-web/internal/hub/identity"
)

func TestStoreStartsUnresolved(t *testing.T) {
	t.Parallel()

	store := NewStore()
	state := store.Snapshot()
	require.False(t, state.Ready)
	require.Nil(t, state.Identity)
	require.False(t, state.Authenticated())
}

func TestStoreResolvesOnce(t *testing.T) {
	t.Parallel()

	store := NewStore()
	var seen []State
	store.Subscribe(func(s State) { seen = append(seen, s) })

	require.True(t, store.Resolve(nil))
	require.False(t, store.Resolve(&identity.Identity{ID: "late"}))

	state := store.Snapshot()
	require.True(t, state.Ready)
	require.Nil(t, state.Identity)
	require.Len(t, seen, 1)
}

func TestStoreWritesNotifySubscribersInOrder(t *testing.T) {
	t.Parallel()

	store := NewStore()
	var order []string
	store.Subscribe(func(State) { order = append(order, "first") })
	cancel := store.Subscribe(func(State) { order = append(order, "second") })
	store.Subscribe(func(State) { order = append(order, "third") })

	store.SetIdentity(&identity.Identity{ID: "u-1", Email: "ada@example.com"})
	require.Equal(t, []string{"first", "second", "third"}, order)

	cancel()
	order = nil
	store.Clear()
	require.Equal(t, []string{"first", "third"}, order)

	state := store.Snapshot()
	require.True(t, state.Ready)
	require.Nil(t, state.Identity)
}

func TestStoreSetIdentitySettlesReadiness(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.SetIdentity(&identity.Identity{ID: "u-1"})
	require.True(t, store.Snapshot().Authenticated())
	require.False(t, store.Resolve(nil), "initial check must not override a gateway write")
	require.True(t, store.Snapshot().Authenticated())
}

func TestStoreSnapshotIsolation(t *testing.T) {
	t.Parallel()

	store := NewStore()
	id := &identity.Identity{ID: "u-1", Email: "ada@example.com"}
	store.SetIdentity(id)
	id.Email = "mutated@example.com"

	snap := store.Snapshot()
	require.Equal(t, "ada@example.com", snap.Identity.Email)
	snap.Identity.Email = "again@example.com"
	require.Equal(t, "ada@example.com", store.Snapshot().Identity.Email)
}

func TestStoreEmptyIdentityTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.Resolve(&identity.Identity{})
	require.Nil(t, store.Snapshot().Identity)
}

func TestStoreContextRoundTrip(t *testing.T) {
	t.Parallel()

	_, ok := StoreFromContext(context.Background())
	require.False(t, ok)

	store := NewStore()
	got, ok := StoreFromContext(WithStore(context.Background(), store))
	require.True(t, ok)
	require.Same(t, store, got)
}
