package subscription

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/percal/percal/internal/config"
	"github.com/percal/percal/internal/task_queue"
	"github.com/percal/percal/internal/utils"
	"github.com/percal/percal/pkg/event"
	"github.com/percal/percal/pkg/ical"
	"github.com/percal/percal/pkg/notify"
	log "github.com/sirupsen/logrus"
)

// CredentialSource reports whether the remote calendar can be written to
// at all. A sync checks this once up front instead of failing on its
// first push.
type CredentialSource interface {
	HasCredentials(ctx context.Context) (bool, error)
}

// SyncEngine runs one user's subscription sync: fetch every feed, merge
// each item into the event store, and hand the collected upcoming set to
// the reconciler. A sync that outlives its invocation budget checkpoints
// its position and reschedules itself through the task queue.
type SyncEngine struct {
	subs        Repository
	checkpoints CheckpointRepository
	store       *event.Store
	fetcher     ical.FeedFetcher
	gateway     event.Gateway
	credentials CredentialSource
	queue       TaskScheduler
	notifier    notify.Notifier
	clock       utils.Clock
	cfg         config.Sync
}

func NewSyncEngine(
	subs Repository,
	checkpoints CheckpointRepository,
	store *event.Store,
	fetcher ical.FeedFetcher,
	gateway event.Gateway,
	credentials CredentialSource,
	queue TaskScheduler,
	notifier notify.Notifier,
	clock utils.Clock,
	cfg config.Sync,
) *SyncEngine {
	return &SyncEngine{
		subs:        subs,
		checkpoints: checkpoints,
		store:       store,
		fetcher:     fetcher,
		gateway:     gateway,
		credentials: credentials,
		queue:       queue,
		notifier:    notifier,
		clock:       clock,
		cfg:         cfg,
	}
}

// SyncUser starts a fresh sync over all of owner's feeds.
func (e *SyncEngine) SyncUser(ctx context.Context, owner string) error {
	sub, err := e.subs.Get(ctx, owner)
	if err != nil {
		return err
	}
	if sub == nil {
		log.Warnf("sync requested for unknown user %s", owner)
		return nil
	}

	state := &ResumeState{Owner: owner, RemainingLinks: slices.Clone(sub.Calendars)}
	return e.run(ctx, sub, state)
}

// Resume continues a checkpointed sync. Without a checkpoint there is
// nothing to do; the full sync that replaced it has already run or will.
func (e *SyncEngine) Resume(ctx context.Context, owner string) error {
	state, err := e.checkpoints.Get(ctx, owner)
	if err != nil {
		return err
	}
	if state == nil {
		log.Warnf("no sync checkpoint for user %s, nothing to resume", owner)
		return nil
	}

	sub, err := e.subs.Get(ctx, owner)
	if err != nil {
		return err
	}
	if sub == nil {
		// The subscription vanished between invocations.
		return e.checkpoints.Delete(ctx, owner)
	}
	return e.run(ctx, sub, state)
}

func (e *SyncEngine) run(ctx context.Context, sub *UserSubscription, state *ResumeState) error {
	ok, err := e.credentials.HasCredentials(ctx)
	if err != nil {
		return err
	}
	if !ok {
		e.notifier.Notify("Sync aborted",
			fmt.Sprintf("No Google credentials stored, cannot sync user %s. Run the authorization flow.", sub.Owner))
		return fmt.Errorf("no Google credentials, sync for %s aborted", sub.Owner)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.InvocationBudget)
	defer cancel()

	attendee := event.Attendee{ID: sub.Owner, Email: sub.Email}
	remaining := slices.Clone(state.RemainingLinks)
	upcoming := slices.Clone(state.UpcomingSoFar)
	cursor := state.LastUID
	var failures []string

	for len(remaining) > 0 {
		link := remaining[0]

		canonical, ok := ical.ValidateFeedURL(link)
		if !ok {
			// A stored link that stopped matching the accepted
			// provider is skipped, not fatal.
			log.Warnf("skipping non-whitelisted feed link for %s", sub.Owner)
			remaining = remaining[1:]
			cursor = ""
			continue
		}

		body, err := e.fetcher.Fetch(ctx, canonical)
		if err != nil {
			if ctx.Err() != nil {
				return e.checkpoint(sub.Owner, remaining, upcoming, cursor)
			}
			log.Errorf("failed to fetch feed for %s: %v", sub.Owner, err)
			failures = append(failures, fmt.Sprintf("fetch %s: %v", canonical, err))
			remaining = remaining[1:]
			cursor = ""
			continue
		}

		feed, err := ical.ParseFeed(body)
		if err != nil {
			log.Errorf("failed to parse feed for %s: %v", sub.Owner, err)
			failures = append(failures, fmt.Sprintf("parse %s: %v", canonical, err))
			remaining = remaining[1:]
			cursor = ""
			continue
		}
		if len(feed.Malformed) > 0 || len(feed.UnknownComponents) > 0 {
			e.reportFeedDrift(sub.Owner, feed)
		}

		items := feed.Items
		if cursor != "" {
			items = fastForward(items, cursor)
			cursor = ""
		}

		lastUID := ""
		for _, item := range items {
			if ctx.Err() != nil {
				return e.checkpoint(sub.Owner, remaining, upcoming, lastUID)
			}

			ev, failed := e.store.Upsert(ctx, item.UID, item.Event, attendee, e.gateway)
			if failed {
				if ctx.Err() != nil {
					// The deadline cut this upsert off mid-flight. The
					// checkpoint stays on the previous item so the resume
					// picks this one up again.
					return e.checkpoint(sub.Owner, remaining, upcoming, lastUID)
				}
				lastUID = item.UID
				failures = append(failures, fmt.Sprintf("event %s could not be synced", item.UID))
				continue
			}
			lastUID = item.UID

			if isUpcoming(ev, e.clock) {
				upcoming = append(upcoming, ev.UID)
			}
		}

		remaining = remaining[1:]
	}

	if len(failures) > 0 {
		e.notifier.Notify("Sync completed with failures",
			fmt.Sprintf("Sync for user %s finished, but %d items failed:\n%s",
				sub.Owner, len(failures), strings.Join(failures, "\n")))
	}

	if err := e.checkpoints.Delete(ctx, sub.Owner); err != nil {
		return err
	}
	if err := e.queue.Enqueue(task_queue.TaskReconcile, task_queue.ReconcilePayload{
		Owner:    sub.Owner,
		Upcoming: upcoming,
	}); err != nil {
		return fmt.Errorf("sync finished but reconcile could not be scheduled: %w", err)
	}

	log.Infof("sync for %s completed, %d upcoming events", sub.Owner, len(upcoming))
	return nil
}

// checkpoint persists the sync position and schedules a resume. Running
// out of budget is expected operation, not an error.
func (e *SyncEngine) checkpoint(owner string, remaining, upcoming []string, lastUID string) error {
	state := &ResumeState{
		Owner:          owner,
		RemainingLinks: remaining,
		UpcomingSoFar:  upcoming,
		LastUID:        lastUID,
	}
	// The parent context is past its deadline here, the checkpoint write
	// gets a fresh one.
	if err := e.checkpoints.Store(context.Background(), state); err != nil {
		e.notifier.Notify("Sync checkpoint lost",
			fmt.Sprintf("Could not persist sync checkpoint for user %s: %v", owner, err))
		return err
	}
	if err := e.queue.Enqueue(task_queue.TaskSyncResume, task_queue.SyncResumePayload{Owner: owner}); err != nil {
		return fmt.Errorf("checkpoint stored but resume could not be scheduled: %w", err)
	}
	log.Infof("sync for %s checkpointed with %d links remaining", owner, len(remaining))
	return nil
}

func (e *SyncEngine) reportFeedDrift(owner string, feed *ical.Feed) {
	var b strings.Builder
	fmt.Fprintf(&b, "Feed for user %s contained unexpected content.\n", owner)
	for _, msg := range feed.Malformed {
		fmt.Fprintf(&b, "malformed item: %s\n", msg)
	}
	for _, comp := range feed.UnknownComponents {
		fmt.Fprintf(&b, "unexpected component: %s\n", comp)
	}
	e.notifier.Notify("Feed format drift", b.String())
}

// fastForward skips items up to and including lastUID. When lastUID is
// not present anymore the whole feed is processed again, which the
// store's idempotent no-op path makes cheap.
func fastForward(items []ical.Item, lastUID string) []ical.Item {
	for i, item := range items {
		if item.UID == lastUID {
			return items[i+1:]
		}
	}
	return items
}

func isUpcoming(ev *event.Event, clock utils.Clock) bool {
	after, err := ev.End.After(clock.Now().UTC())
	if err != nil {
		log.Warnf("event %s has unparseable end time: %v", ev.UID, err)
		return false
	}
	return after
}
