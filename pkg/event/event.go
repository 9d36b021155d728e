package event

import (
	"slices"

	"github.com/percal/percal/pkg/timeutil"
)

// Event is the merged, durable record of a calendar occurrence. A single
// Event is shared by every subscriber whose feed carries its UID; the
// per-user association lives in Attendees.
type Event struct {
	// UID is the iCalendar identifier and the primary key. Immutable.
	UID string

	Summary     string
	Location    string
	Description string

	Start timeutil.TimeKeyword
	End   timeutil.TimeKeyword

	// Attendees holds stable user IDs, sorted and unique. Emails are
	// resolved only when talking to the remote calendar.
	Attendees []string

	// RemoteID identifies the resource on the remote calendar. Empty
	// until the first successful insert.
	RemoteID string

	// Sequence mirrors the remote resource version. Display and audit
	// only, never a merge input.
	Sequence int64
}

// NormalizedEvent is what the feed parser produces for one VEVENT, before
// it is merged into the store.
type NormalizedEvent struct {
	Summary     string
	Location    string
	Description string
	Start       timeutil.TimeKeyword
	End         timeutil.TimeKeyword
}

// Attendee is the identity under which an Upsert runs: the stable user ID
// recorded on the Event plus the email pushed to the remote calendar.
type Attendee struct {
	ID    string
	Email string
}

func (e *Event) HasAttendee(userID string) bool {
	return slices.Contains(e.Attendees, userID)
}

// AddAttendee inserts userID keeping Attendees sorted and unique.
func (e *Event) AddAttendee(userID string) {
	if idx, found := slices.BinarySearch(e.Attendees, userID); !found {
		e.Attendees = slices.Insert(e.Attendees, idx, userID)
	}
}

func (e *Event) RemoveAttendee(userID string) {
	e.Attendees = slices.DeleteFunc(e.Attendees, func(id string) bool {
		return id == userID
	})
}

// EndDate is the calendar-day component of End, used by retention queries.
func (e *Event) EndDate() string {
	return e.End.DateString()
}

// Matches reports whether the stored fields already equal the normalized
// feed content. A match means Upsert has nothing to push.
func (e *Event) Matches(n NormalizedEvent) bool {
	return e.Summary == n.Summary &&
		e.Location == n.Location &&
		e.Description == n.Description &&
		e.Start == n.Start &&
		e.End == n.End
}

func (e *Event) apply(n NormalizedEvent) {
	e.Summary = n.Summary
	e.Location = n.Location
	e.Description = n.Description
	e.Start = n.Start
	e.End = n.End
}
