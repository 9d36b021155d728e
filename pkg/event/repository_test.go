package event

import (
	"context"
	"testing"

	"github.com/percal/percal/internal/test_utils"
	"github.com/percal/percal/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeStoredEvent(uid, endDate string) *Event {
	return &Event{
		UID:         uid,
		Summary:     "Trip segment",
		Location:    "Boston",
		Description: "In Boston from Apr 1 to Apr 5.",
		Start:       timeutil.TimeKeyword{Kind: timeutil.KindDate, Value: "2026-04-01"},
		End:         timeutil.TimeKeyword{Kind: timeutil.KindDate, Value: endDate},
		Attendees:   []string{"user-a", "user-b"},
		RemoteID:    "remote-1",
		Sequence:    2,
	}
}

func TestRepository(t *testing.T) {
	t.Run("stores and loads an event", func(t *testing.T) {
		// given
		db := test_utils.SetupTestDB(t)
		repo := NewRepository(db)
		ev := makeStoredEvent("item-1", "2026-04-06")

		// when
		require.NoError(t, repo.Store(context.Background(), ev))
		loaded, err := repo.Get(context.Background(), "item-1")

		// then
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, ev, loaded)
	})

	t.Run("returns nil for an unknown uid", func(t *testing.T) {
		// given
		db := test_utils.SetupTestDB(t)
		repo := NewRepository(db)

		// when
		loaded, err := repo.Get(context.Background(), "item-missing")

		// then
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("replaces the row on a second store", func(t *testing.T) {
		// given
		db := test_utils.SetupTestDB(t)
		repo := NewRepository(db)
		ev := makeStoredEvent("item-1", "2026-04-06")
		require.NoError(t, repo.Store(context.Background(), ev))

		// when
		ev.Summary = "Changed plans"
		ev.Attendees = []string{"user-a"}
		ev.Sequence = 3
		require.NoError(t, repo.Store(context.Background(), ev))
		loaded, err := repo.Get(context.Background(), "item-1")

		// then
		require.NoError(t, err)
		assert.Equal(t, "Changed plans", loaded.Summary)
		assert.Equal(t, []string{"user-a"}, loaded.Attendees)
		assert.Equal(t, int64(3), loaded.Sequence)
	})

	t.Run("deletes an event", func(t *testing.T) {
		// given
		db := test_utils.SetupTestDB(t)
		repo := NewRepository(db)
		require.NoError(t, repo.Store(context.Background(), makeStoredEvent("item-1", "2026-04-06")))

		// when
		require.NoError(t, repo.Delete(context.Background(), "item-1"))
		loaded, err := repo.Get(context.Background(), "item-1")

		// then
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("finds events ending strictly before a date", func(t *testing.T) {
		// given
		db := test_utils.SetupTestDB(t)
		repo := NewRepository(db)
		require.NoError(t, repo.Store(context.Background(), makeStoredEvent("item-old", "2026-03-14")))
		require.NoError(t, repo.Store(context.Background(), makeStoredEvent("item-boundary", "2026-03-15")))
		require.NoError(t, repo.Store(context.Background(), makeStoredEvent("item-new", "2026-04-06")))

		// when
		expired, err := repo.FindEndingBefore(context.Background(), "2026-03-15")

		// then
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, "item-old", expired[0].UID)
	})
}
