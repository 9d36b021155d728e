package subscription

import (
	"context"
	"fmt"
	"slices"

	"github.com/percal/percal/internal/task_queue"
	"github.com/percal/percal/internal/utils"
	"github.com/percal/percal/pkg/ical"
	"github.com/percal/percal/pkg/timeutil"
	log "github.com/sirupsen/logrus"
)

// TaskScheduler is the queue side the subscription package needs:
// enqueueing deferred work. Satisfied by *task_queue.Queue.
type TaskScheduler interface {
	Enqueue(taskType task_queue.TaskType, payload any) error
}

type Service interface {
	// AddCalendar subscribes owner to a feed link. Adding a link the
	// user already follows is a no-op returning the current state.
	AddCalendar(ctx context.Context, owner, email, link string) (*UserSubscription, error)
	// ChangeFrequency re-spreads the user's sync intervals to the given
	// frequency label, keeping the current phase.
	ChangeFrequency(ctx context.Context, owner, frequency string) (*UserSubscription, error)
	GetSubscription(ctx context.Context, owner string) (*UserSubscription, error)
	// RunDueSyncs enqueues a sync for every subscription whose interval
	// set contains the current three-hour interval.
	RunDueSyncs(ctx context.Context) error
}

type ServiceImpl struct {
	repo  Repository
	queue TaskScheduler
	clock utils.Clock
}

func NewService(repo Repository, queue TaskScheduler, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{repo: repo, queue: queue, clock: clock}
}

func (s *ServiceImpl) AddCalendar(ctx context.Context, owner, email, link string) (*UserSubscription, error) {
	canonical, ok := ical.ValidateFeedURL(link)
	if !ok {
		return nil, ErrInvalidFeed
	}

	sub, err := s.repo.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		// First subscription syncs once a week, phased to now so the
		// load spreads across users.
		intervals, err := IntervalsForFrequency("week", timeutil.ToUpdateInterval(s.clock.Now().UTC()))
		if err != nil {
			return nil, err
		}
		sub = &UserSubscription{Owner: owner, Email: email, UpdateIntervals: intervals}
	}
	sub.Email = email

	if slices.Contains(sub.Calendars, canonical) {
		log.Debugf("user %s already subscribed to feed, nothing to do", owner)
		return sub, nil
	}
	if len(sub.Calendars) >= MaxCalendars {
		return nil, ErrTooManyCalendars
	}
	sub.Calendars = append(sub.Calendars, canonical)

	if err := s.repo.Store(ctx, sub); err != nil {
		return nil, err
	}

	// First sync of the new feed should not wait for the next interval.
	if err := s.queue.Enqueue(task_queue.TaskSyncUser, task_queue.SyncUserPayload{Owner: owner}); err != nil {
		log.Warnf("could not schedule initial sync for %s: %v", owner, err)
	}
	return sub, nil
}

func (s *ServiceImpl) ChangeFrequency(ctx context.Context, owner, frequency string) (*UserSubscription, error) {
	sub, err := s.repo.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotSubscribed
	}

	base := 0
	if len(sub.UpdateIntervals) > 0 {
		base = sub.UpdateIntervals[0]
	}
	intervals, err := IntervalsForFrequency(frequency, base)
	if err != nil {
		return nil, err
	}
	sub.UpdateIntervals = intervals

	if err := s.repo.Store(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *ServiceImpl) GetSubscription(ctx context.Context, owner string) (*UserSubscription, error) {
	sub, err := s.repo.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotSubscribed
	}
	return sub, nil
}

func (s *ServiceImpl) RunDueSyncs(ctx context.Context) error {
	interval := timeutil.ToUpdateInterval(s.clock.Now().UTC())

	subs, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	due := 0
	for _, sub := range subs {
		if !sub.SyncsAt(interval) {
			continue
		}
		if err := s.queue.Enqueue(task_queue.TaskSyncUser, task_queue.SyncUserPayload{Owner: sub.Owner}); err != nil {
			log.Errorf("could not schedule sync for %s: %v", sub.Owner, err)
			continue
		}
		due++
	}
	log.Infof("interval %d: scheduled %d of %d subscriptions", interval, due, len(subs))
	return nil
}
