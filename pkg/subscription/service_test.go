package subscription

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/percal/percal/internal/task_queue"
	"github.com/percal/percal/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	feedLink       = "https://www.tripit.com/feed/ical/private/USER-A/tripit.ics"
	webcalFeedLink = "webcal://www.tripit.com/feed/ical/private/USER-A/tripit.ics"
)

func newTestService() (*ServiceImpl, *StubRepository, *StubScheduler, *utils.MockClock) {
	repo := NewStubRepository()
	scheduler := &StubScheduler{}
	// 2026-06-15 is a Monday; 00:30 UTC falls into interval 1.
	clock := &utils.MockClock{FixedNow: time.Date(2026, 6, 15, 0, 30, 0, 0, time.UTC)}
	return NewService(repo, scheduler, clock), repo, scheduler, clock
}

func TestAddCalendar(t *testing.T) {
	t.Run("creates a weekly subscription and schedules the first sync", func(t *testing.T) {
		// given
		service, repo, scheduler, _ := newTestService()

		// when
		sub, err := service.AddCalendar(context.Background(), "user-a", "a@example.com", feedLink)

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{feedLink}, sub.Calendars)
		assert.Len(t, sub.UpdateIntervals, 1)
		assert.Equal(t, "week", sub.Frequency())

		stored, err := repo.Get(context.Background(), "user-a")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "a@example.com", stored.Email)

		tasks := scheduler.TasksOfType(task_queue.TaskSyncUser)
		require.Len(t, tasks, 1)
		assert.Equal(t, task_queue.SyncUserPayload{Owner: "user-a"}, tasks[0].Payload)
	})

	t.Run("canonicalizes webcal links", func(t *testing.T) {
		// given
		service, _, _, _ := newTestService()

		// when
		sub, err := service.AddCalendar(context.Background(), "user-a", "a@example.com", webcalFeedLink)

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"http://www.tripit.com/feed/ical/private/USER-A/tripit.ics"}, sub.Calendars)
	})

	t.Run("is a no-op for an already subscribed link", func(t *testing.T) {
		// given
		service, _, scheduler, _ := newTestService()
		_, err := service.AddCalendar(context.Background(), "user-a", "a@example.com", feedLink)
		require.NoError(t, err)

		// when
		sub, err := service.AddCalendar(context.Background(), "user-a", "a@example.com", feedLink)

		// then
		require.NoError(t, err)
		assert.Len(t, sub.Calendars, 1)
		assert.Len(t, scheduler.TasksOfType(task_queue.TaskSyncUser), 1)
	})

	t.Run("rejects links from other providers", func(t *testing.T) {
		// given
		service, _, scheduler, _ := newTestService()

		// when
		_, err := service.AddCalendar(context.Background(), "user-a", "a@example.com", "https://calendar.example.com/feed.ics")

		// then
		assert.ErrorIs(t, err, ErrInvalidFeed)
		assert.Empty(t, scheduler.Tasks)
	})

	t.Run("caps the number of calendars", func(t *testing.T) {
		// given
		service, _, _, _ := newTestService()
		for i := 0; i < MaxCalendars; i++ {
			link := fmt.Sprintf("https://www.tripit.com/feed/ical/private/KEY-%d/tripit.ics", i)
			_, err := service.AddCalendar(context.Background(), "user-a", "a@example.com", link)
			require.NoError(t, err)
		}

		// when
		_, err := service.AddCalendar(context.Background(), "user-a", "a@example.com",
			"https://www.tripit.com/feed/ical/private/KEY-9/tripit.ics")

		// then
		assert.ErrorIs(t, err, ErrTooManyCalendars)
	})
}

func TestChangeFrequency(t *testing.T) {
	t.Run("re-spreads intervals keeping the phase", func(t *testing.T) {
		// given
		service, repo, _, _ := newTestService()
		require.NoError(t, repo.Store(context.Background(), &UserSubscription{
			Owner:           "user-a",
			Email:           "a@example.com",
			Calendars:       []string{feedLink},
			UpdateIntervals: []int{3},
		}))

		// when
		sub, err := service.ChangeFrequency(context.Background(), "user-a", "day")

		// then
		require.NoError(t, err)
		assert.Equal(t, []int{3, 11, 19, 27, 35, 43, 51}, sub.UpdateIntervals)
	})

	t.Run("rejects unknown frequency", func(t *testing.T) {
		// given
		service, repo, _, _ := newTestService()
		require.NoError(t, repo.Store(context.Background(), &UserSubscription{Owner: "user-a", UpdateIntervals: []int{3}}))

		// when
		_, err := service.ChangeFrequency(context.Background(), "user-a", "hourly")

		// then
		assert.ErrorIs(t, err, ErrBadFrequency)
	})

	t.Run("fails for a user without a subscription", func(t *testing.T) {
		// given
		service, _, _, _ := newTestService()

		// when
		_, err := service.ChangeFrequency(context.Background(), "user-a", "day")

		// then
		assert.ErrorIs(t, err, ErrNotSubscribed)
	})
}

func TestRunDueSyncs(t *testing.T) {
	t.Run("schedules only subscriptions due at the current interval", func(t *testing.T) {
		// given
		service, repo, scheduler, _ := newTestService()
		require.NoError(t, repo.Store(context.Background(), &UserSubscription{Owner: "user-due", UpdateIntervals: []int{1}}))
		require.NoError(t, repo.Store(context.Background(), &UserSubscription{Owner: "user-later", UpdateIntervals: []int{2}}))

		// when
		err := service.RunDueSyncs(context.Background())

		// then
		require.NoError(t, err)
		tasks := scheduler.TasksOfType(task_queue.TaskSyncUser)
		require.Len(t, tasks, 1)
		assert.Equal(t, task_queue.SyncUserPayload{Owner: "user-due"}, tasks[0].Payload)
	})
}
