package event

import (
	"context"

	"github.com/percal/percal/pkg/timeutil"
)

// EventBody is the wire representation pushed to the remote calendar.
// Exactly one of date/dateTime is populated per TimeKeyword kind.
type EventBody struct {
	Summary     string
	Description string
	Location    string
	Start       timeutil.TimeKeyword
	End         timeutil.TimeKeyword
	// Attendees holds attendee emails as known to the remote resource.
	Attendees []string
	Sequence  int64
}

// RemoteEvent is what the remote calendar reports back for a resource.
type RemoteEvent struct {
	ID        string
	Sequence  int64
	Attendees []string
}

// Gateway is the remote calendar API as consumed by the store and the
// reconciler. Implementations own transient-error retries; any returned
// error means the operation could not be completed this cycle.
type Gateway interface {
	Insert(ctx context.Context, body EventBody) (*RemoteEvent, error)
	Update(ctx context.Context, remoteID string, body EventBody) (*RemoteEvent, error)
	Delete(ctx context.Context, remoteID string) error
	Get(ctx context.Context, remoteID string) (*RemoteEvent, error)
}

func (e *Event) body(attendeeEmails []string, sequence int64) EventBody {
	return EventBody{
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Start:       e.Start,
		End:         e.End,
		Attendees:   attendeeEmails,
		Sequence:    sequence,
	}
}
