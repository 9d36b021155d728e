package subscription

import (
	"context"
	"slices"

	"github.com/percal/percal/internal/utils"
	"github.com/percal/percal/pkg/event"
	log "github.com/sirupsen/logrus"
)

// Reconciler diffs the upcoming set a completed sync produced against the
// one stored on the subscription and removes the user from events their
// feeds no longer carry.
type Reconciler struct {
	subs    Repository
	events  event.Repository
	store   *event.Store
	gateway event.Gateway
	clock   utils.Clock
}

func NewReconciler(subs Repository, events event.Repository, store *event.Store, gateway event.Gateway, clock utils.Clock) *Reconciler {
	return &Reconciler{subs: subs, events: events, store: store, gateway: gateway, clock: clock}
}

// Reconcile replaces the subscription's upcoming set with newUpcoming and
// drops the user from every event that fell out of it. Per-event removal
// failures are logged and left for the next cycle; the new upcoming set
// is persisted regardless, since it reflects what the feeds actually
// contain now.
func (r *Reconciler) Reconcile(ctx context.Context, owner string, newUpcoming []string) error {
	sub, err := r.subs.Get(ctx, owner)
	if err != nil {
		return err
	}
	if sub == nil {
		log.Warnf("reconcile requested for unknown user %s", owner)
		return nil
	}

	slices.Sort(newUpcoming)
	newUpcoming = slices.Compact(newUpcoming)

	if slices.Equal(sub.Upcoming, newUpcoming) {
		return nil
	}

	attendee := event.Attendee{ID: sub.Owner, Email: sub.Email}
	for _, uid := range sub.Upcoming {
		if slices.Contains(newUpcoming, uid) {
			continue
		}
		if r.shouldDrop(ctx, uid) {
			if failed := r.store.Drop(ctx, uid, attendee, r.gateway); failed {
				log.Errorf("could not remove %s from event %s, leaving for next cycle", owner, uid)
			}
		}
	}

	sub.Upcoming = newUpcoming
	return r.subs.Store(ctx, sub)
}

// shouldDrop filters the stale set down to events that still lie in the
// future. An event that simply ended leaves the upcoming set on its own
// and is cleaned up by retention, not by attendee removal.
func (r *Reconciler) shouldDrop(ctx context.Context, uid string) bool {
	ev, err := r.events.Get(ctx, uid)
	if err != nil || ev == nil {
		return false
	}
	after, err := ev.End.After(r.clock.Now().UTC())
	if err != nil {
		log.Warnf("event %s has unparseable end time: %v", uid, err)
		return false
	}
	return after
}
