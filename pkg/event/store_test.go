package event

import (
	"context"
	"testing"

	"github.com/percal/percal/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripEvent() NormalizedEvent {
	return NormalizedEvent{
		Summary:     "Flight to San Diego",
		Location:    "San Diego, CA",
		Description: "In San Diego, CA from Sep 1 to Sep 5",
		Start:       timeutil.TimeKeyword{Kind: timeutil.KindDateTime, Value: "2026-09-01T08:00:00.000Z"},
		End:         timeutil.TimeKeyword{Kind: timeutil.KindDateTime, Value: "2026-09-01T11:30:00.000Z"},
	}
}

func TestUpsert_CreatesNewEvent(t *testing.T) {
	ctx := context.Background()
	repo := NewStubRepository()
	gw := NewStubGateway()
	store := NewStore(repo)

	ev, failed := store.Upsert(ctx, "item-1", tripEvent(), Attendee{ID: "user-a", Email: "a@example.com"}, gw)

	require.False(t, failed)
	assert.Equal(t, 1, gw.Inserts)
	assert.Equal(t, []string{"user-a"}, ev.Attendees)
	assert.NotEmpty(t, ev.RemoteID)

	stored, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, ev.RemoteID, stored.RemoteID)
}

func TestUpsert_IsIdempotent(t *testing.T) {
	// given
	ctx := context.Background()
	repo := NewStubRepository()
	gw := NewStubGateway()
	store := NewStore(repo)
	att := Attendee{ID: "user-a", Email: "a@example.com"}

	// when the same content is upserted twice for the same user
	_, failed := store.Upsert(ctx, "item-1", tripEvent(), att, gw)
	require.False(t, failed)
	_, failed = store.Upsert(ctx, "item-1", tripEvent(), att, gw)
	require.False(t, failed)

	// then exactly one remote call happened in total
	assert.Equal(t, 1, gw.Inserts)
	assert.Equal(t, 0, gw.Updates)
	assert.Equal(t, 0, gw.Gets)
}

func TestUpsert_MergesSecondSubscriber(t *testing.T) {
	// given an event already created through user A's feed
	ctx := context.Background()
	repo := NewStubRepository()
	gw := NewStubGateway()
	store := NewStore(repo)
	_, failed := store.Upsert(ctx, "item-1", tripEvent(), Attendee{ID: "user-a", Email: "a@example.com"}, gw)
	require.False(t, failed)

	// when user B's feed carries the same UID with identical content
	ev, failed := store.Upsert(ctx, "item-1", tripEvent(), Attendee{ID: "user-b", Email: "b@example.com"}, gw)

	// then the event is shared, with one insert and one update in total
	require.False(t, failed)
	assert.Equal(t, []string{"user-a", "user-b"}, ev.Attendees)
	assert.Equal(t, 1, gw.Inserts)
	assert.Equal(t, 1, gw.Updates)

	remote := gw.Remote[ev.RemoteID]
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, remote.Attendees)
}

func TestUpsert_PushesContentChange(t *testing.T) {
	ctx := context.Background()
	repo := NewStubRepository()
	gw := NewStubGateway()
	store := NewStore(repo)
	att := Attendee{ID: "user-a", Email: "a@example.com"}
	_, failed := store.Upsert(ctx, "item-1", tripEvent(), att, gw)
	require.False(t, failed)

	changed := tripEvent()
	changed.Summary = "Flight to San Diego (delayed)"
	ev, failed := store.Upsert(ctx, "item-1", changed, att, gw)

	require.False(t, failed)
	assert.Equal(t, "Flight to San Diego (delayed)", ev.Summary)
	assert.Equal(t, []string{"user-a"}, ev.Attendees)
	assert.Equal(t, 1, gw.Updates)
	assert.Equal(t, int64(1), ev.Sequence)
}

func TestUpsert_GatewayFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	repo := NewStubRepository()
	gw := NewStubGateway()
	store := NewStore(repo)
	att := Attendee{ID: "user-a", Email: "a@example.com"}

	t.Run("failed insert persists nothing", func(t *testing.T) {
		gw.FailInsert = true
		ev, failed := store.Upsert(ctx, "item-1", tripEvent(), att, gw)

		assert.True(t, failed)
		assert.Nil(t, ev)
		stored, err := repo.Get(ctx, "item-1")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("failed update keeps pre-mutation state", func(t *testing.T) {
		gw.FailInsert = false
		_, failed := store.Upsert(ctx, "item-1", tripEvent(), att, gw)
		require.False(t, failed)

		gw.FailUpdate = true
		changed := tripEvent()
		changed.Location = "San Jose, CA"
		_, failed = store.Upsert(ctx, "item-1", changed, att, gw)

		assert.True(t, failed)
		stored, err := repo.Get(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, "San Diego, CA", stored.Location)
	})
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	attA := Attendee{ID: "user-a", Email: "a@example.com"}
	attB := Attendee{ID: "user-b", Email: "b@example.com"}

	t.Run("deletes the event when the last attendee leaves", func(t *testing.T) {
		// given
		repo := NewStubRepository()
		gw := NewStubGateway()
		store := NewStore(repo)
		_, failed := store.Upsert(ctx, "item-1", tripEvent(), attA, gw)
		require.False(t, failed)

		// when
		failed = store.Drop(ctx, "item-1", attA, gw)

		// then
		require.False(t, failed)
		assert.Equal(t, 1, gw.Deletes)
		stored, err := repo.Get(ctx, "item-1")
		require.NoError(t, err)
		assert.Nil(t, stored)
		assert.Empty(t, gw.Remote)
	})

	t.Run("strips one attendee and keeps the rest", func(t *testing.T) {
		// given
		repo := NewStubRepository()
		gw := NewStubGateway()
		store := NewStore(repo)
		_, failed := store.Upsert(ctx, "item-1", tripEvent(), attA, gw)
		require.False(t, failed)
		ev, failed := store.Upsert(ctx, "item-1", tripEvent(), attB, gw)
		require.False(t, failed)
		require.Equal(t, []string{"user-a", "user-b"}, ev.Attendees)

		// when
		failed = store.Drop(ctx, "item-1", attA, gw)

		// then
		require.False(t, failed)
		assert.Equal(t, 0, gw.Deletes)
		stored, err := repo.Get(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"user-b"}, stored.Attendees)
		assert.Equal(t, []string{"b@example.com"}, gw.Remote[stored.RemoteID].Attendees)
	})

	t.Run("is a no-op for an unknown attendee", func(t *testing.T) {
		// given
		repo := NewStubRepository()
		gw := NewStubGateway()
		store := NewStore(repo)
		_, failed := store.Upsert(ctx, "item-1", tripEvent(), attA, gw)
		require.False(t, failed)

		// when
		failed = store.Drop(ctx, "item-1", attB, gw)

		// then
		require.False(t, failed)
		assert.Equal(t, 0, gw.Deletes)
		assert.Equal(t, 0, gw.Updates)
	})

	t.Run("keeps state when the remote delete fails", func(t *testing.T) {
		// given
		repo := NewStubRepository()
		gw := NewStubGateway()
		store := NewStore(repo)
		_, failed := store.Upsert(ctx, "item-1", tripEvent(), attA, gw)
		require.False(t, failed)
		gw.FailDelete = true

		// when
		failed = store.Drop(ctx, "item-1", attA, gw)

		// then
		assert.True(t, failed)
		stored, err := repo.Get(ctx, "item-1")
		require.NoError(t, err)
		require.NotNil(t, stored)
	})
}
