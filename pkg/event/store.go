package event

import (
	"context"
	"slices"

	log "github.com/sirupsen/logrus"
)

// Store merges normalized feed events into the durable event table and
// mirrors every accepted change to the remote calendar.
type Store struct {
	repo Repository
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// Upsert merges one (uid, normalized event) pair on behalf of attendee.
//
// A missing UID inserts remotely and persists the new record. An existing
// UID with identical content and a known attendee is a no-op with no
// remote call, which is what makes re-processing after a resume safe.
// Any other combination fetches the remote resource, applies the merged
// fields and attendee set, and pushes a single update.
//
// failed=true means this UID could not be synced this cycle and must not
// be treated as processed; nothing has been persisted in that case, so a
// retry sees pre-mutation state.
func (s *Store) Upsert(ctx context.Context, uid string, norm NormalizedEvent, attendee Attendee, gw Gateway) (ev *Event, failed bool) {
	existing, err := s.repo.Get(ctx, uid)
	if err != nil {
		return nil, true
	}

	if existing == nil {
		return s.insert(ctx, uid, norm, attendee, gw)
	}

	changed := !existing.Matches(norm)
	newAttendee := !existing.HasAttendee(attendee.ID)
	if !changed && !newAttendee {
		// Most events are unchanged on most cycles; skipping the
		// remote round-trip here is what keeps a full sync cheap.
		return existing, false
	}

	return s.update(ctx, existing, norm, attendee, newAttendee, gw)
}

func (s *Store) insert(ctx context.Context, uid string, norm NormalizedEvent, attendee Attendee, gw Gateway) (*Event, bool) {
	ev := &Event{UID: uid, Attendees: []string{attendee.ID}}
	ev.apply(norm)

	remote, err := gw.Insert(ctx, ev.body([]string{attendee.Email}, 0))
	if err != nil {
		log.Errorf("failed to insert event %s remotely: %v", uid, err)
		return nil, true
	}
	ev.RemoteID = remote.ID
	ev.Sequence = remote.Sequence

	if err := s.repo.Store(ctx, ev); err != nil {
		// The remote resource now exists without a local record; the
		// next cycle will insert again. See the duplicate note in
		// DESIGN.md.
		return nil, true
	}
	return ev, false
}

// Drop removes attendee from the stored event. When other attendees
// remain the remote resource is updated without them; when this was the
// last attendee the remote resource and the local record are deleted.
//
// failed=true means the removal could not be completed this cycle and no
// state was changed, so a later pass can retry.
func (s *Store) Drop(ctx context.Context, uid string, attendee Attendee, gw Gateway) (failed bool) {
	ev, err := s.repo.Get(ctx, uid)
	if err != nil {
		return true
	}
	if ev == nil || !ev.HasAttendee(attendee.ID) {
		return false
	}

	if len(ev.Attendees) == 1 {
		if err := gw.Delete(ctx, ev.RemoteID); err != nil {
			log.Errorf("failed to delete event %s remotely: %v", uid, err)
			return true
		}
		if err := s.repo.Delete(ctx, uid); err != nil {
			return true
		}
		return false
	}

	remote, err := gw.Get(ctx, ev.RemoteID)
	if err != nil {
		log.Errorf("failed to fetch remote event %s: %v", uid, err)
		return true
	}

	stripped := *ev
	stripped.Attendees = slices.Clone(ev.Attendees)
	stripped.RemoveAttendee(attendee.ID)
	emails := slices.DeleteFunc(slices.Clone(remote.Attendees), func(email string) bool {
		return email == attendee.Email
	})

	updated, err := gw.Update(ctx, stripped.RemoteID, stripped.body(emails, remote.Sequence))
	if err != nil {
		log.Errorf("failed to update event %s remotely: %v", uid, err)
		return true
	}
	stripped.Sequence = updated.Sequence

	if err := s.repo.Store(ctx, &stripped); err != nil {
		return true
	}
	return false
}

func (s *Store) update(ctx context.Context, existing *Event, norm NormalizedEvent, attendee Attendee, newAttendee bool, gw Gateway) (*Event, bool) {
	// The remote resource is the source of truth for attendee emails;
	// locally only stable IDs are kept.
	remote, err := gw.Get(ctx, existing.RemoteID)
	if err != nil {
		log.Errorf("failed to fetch remote event %s: %v", existing.UID, err)
		return nil, true
	}

	merged := *existing
	merged.Attendees = slices.Clone(existing.Attendees)
	merged.apply(norm)

	emails := remote.Attendees
	if newAttendee {
		merged.AddAttendee(attendee.ID)
		if !slices.Contains(emails, attendee.Email) {
			emails = append(emails, attendee.Email)
		}
	}

	updated, err := gw.Update(ctx, merged.RemoteID, merged.body(emails, remote.Sequence))
	if err != nil {
		log.Errorf("failed to update event %s remotely: %v", existing.UID, err)
		return nil, true
	}
	merged.Sequence = updated.Sequence

	if err := s.repo.Store(ctx, &merged); err != nil {
		return nil, true
	}
	return &merged, false
}
