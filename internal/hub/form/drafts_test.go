package form

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"musanzehub.com/hub-web/internal/hub/submission"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleState() *State {
	return &State{
		Values:      map[string]string{"name": "Ada", "email": "ada@example.com"},
		Errors:      map[string]string{"phone": "Phone number is required"},
		CurrentStep: 1,
		Outcome:     submission.Failure("Failed to book appointment. Please try again later."),
	}
}

func TestMemoryDraftStore(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryDraftStore(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	_, err := store.Load(ctx, "sid", AppointmentForm)
	require.ErrorIs(t, err, ErrNoDraft)

	state := sampleState()
	require.NoError(t, store.Save(ctx, "sid", AppointmentForm, state))
	state.Values["name"] = "mutated"

	got, err := store.Load(ctx, "sid", AppointmentForm)
	require.NoError(t, err)
	require.Equal(t, "Ada", got.Values["name"])
	require.Equal(t, sampleState().Outcome, got.Outcome)

	_, err = store.Load(ctx, "sid", HireForm)
	require.ErrorIs(t, err, ErrNoDraft, "drafts are never shared between forms")
	_, err = store.Load(ctx, "other", AppointmentForm)
	require.ErrorIs(t, err, ErrNoDraft, "drafts are never shared between visitors")

	now = now.Add(2 * time.Minute)
	_, err = store.Load(ctx, "sid", AppointmentForm)
	require.ErrorIs(t, err, ErrNoDraft)
	require.Zero(t, store.Len())
}

func TestMemoryDraftStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryDraftStore(0, nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "sid", SignupForm, sampleState()))
	require.NoError(t, store.Delete(ctx, "sid", SignupForm))
	_, err := store.Load(ctx, "sid", SignupForm)
	require.ErrorIs(t, err, ErrNoDraft)
}

func TestRedisDraftStore(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	store := NewRedisDraftStore(client, time.Minute)
	ctx := context.Background()

	_, err := store.Load(ctx, "sid", AppointmentForm)
	require.ErrorIs(t, err, ErrNoDraft)

	require.NoError(t, store.Save(ctx, "sid", AppointmentForm, sampleState()))
	require.True(t, mr.Exists("hub:draft:sid:appointment"))

	got, err := store.Load(ctx, "sid", AppointmentForm)
	require.NoError(t, err)
	require.Equal(t, sampleState(), got)

	mr.FastForward(2 * time.Minute)
	_, err = store.Load(ctx, "sid", AppointmentForm)
	require.ErrorIs(t, err, ErrNoDraft)

	require.NoError(t, store.Save(ctx, "sid", HireForm, sampleState()))
	require.NoError(t, store.Delete(ctx, "sid", HireForm))
	require.False(t, mr.Exists("hub:draft:sid:hire"))
}

func TestRedisDraftStoreDropsCorruptDraft(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	store := NewRedisDraftStore(client, time.Minute)
	require.NoError(t, mr.Set("hub:draft:sid:signup", "{not json"))

	_, err := store.Load(context.Background(), "sid", SignupForm)
	require.ErrorIs(t, err, ErrNoDraft)
	require.False(t, mr.Exists("hub:draft:sid:signup"))
}
