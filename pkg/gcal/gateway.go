package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/percal/percal/internal/config"
	"github.com/percal/percal/pkg/event"
	"github.com/percal/percal/pkg/timeutil"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const retryAttempts = 3

// Gateway pushes events to the single shared Google calendar. Transient
// API failures are retried a fixed number of times with a pause in
// between; a returned error means all attempts were spent or the failure
// was permanent.
type Gateway struct {
	auth       *GoogleAuth
	calendarId string
	pause      time.Duration
}

func NewGateway(auth *GoogleAuth, cfg config.Application) *Gateway {
	return &Gateway{
		auth:       auth,
		calendarId: cfg.Google.CalendarId,
		pause:      cfg.Sync.RetryPause,
	}
}

func (g *Gateway) Insert(ctx context.Context, body event.EventBody) (*event.RemoteEvent, error) {
	service, err := g.prepareService(ctx)
	if err != nil {
		return nil, err
	}

	var result *gcal.Event
	err = g.withRetry(ctx, "insert", func() error {
		var callErr error
		result, callErr = service.Events.Insert(g.calendarId, toGoogleEvent(body)).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("inserted calendar event %s", result.Id)
	return fromGoogleEvent(result), nil
}

func (g *Gateway) Update(ctx context.Context, remoteID string, body event.EventBody) (*event.RemoteEvent, error) {
	service, err := g.prepareService(ctx)
	if err != nil {
		return nil, err
	}

	var result *gcal.Event
	err = g.withRetry(ctx, "update", func() error {
		var callErr error
		result, callErr = service.Events.Update(g.calendarId, remoteID, toGoogleEvent(body)).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("updated calendar event %s to sequence %d", result.Id, result.Sequence)
	return fromGoogleEvent(result), nil
}

func (g *Gateway) Delete(ctx context.Context, remoteID string) error {
	service, err := g.prepareService(ctx)
	if err != nil {
		return err
	}

	return g.withRetry(ctx, "delete", func() error {
		callErr := service.Events.Delete(g.calendarId, remoteID).Context(ctx).Do()
		if isGone(callErr) {
			// already absent remotely, which is what delete wanted
			log.Debugf("calendar event %s was already gone", remoteID)
			return nil
		}
		return callErr
	})
}

func (g *Gateway) Get(ctx context.Context, remoteID string) (*event.RemoteEvent, error) {
	service, err := g.prepareService(ctx)
	if err != nil {
		return nil, err
	}

	var result *gcal.Event
	err = g.withRetry(ctx, "get", func() error {
		var callErr error
		result, callErr = service.Events.Get(g.calendarId, remoteID).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return fromGoogleEvent(result), nil
}

func (g *Gateway) prepareService(ctx context.Context) (*gcal.Service, error) {
	client, err := g.auth.Client(ctx)
	if err != nil {
		return nil, err
	}
	service, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		err := fmt.Errorf("unable to create Calendar client: %v", err)
		log.Error(err)
		return nil, err
	}
	return service, nil
}

func (g *Gateway) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			log.Errorf("calendar %s failed permanently: %v", op, err)
			return fmt.Errorf("calendar %s failed: %w", op, err)
		}
		log.Warnf("calendar %s attempt %d/%d failed: %v", op, attempt, retryAttempts, err)
		if attempt < retryAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.pause):
			}
		}
	}
	return fmt.Errorf("calendar %s failed after %d attempts: %w", op, retryAttempts, err)
}

// isRetryable classifies API failures. Server-side errors and rate
// limiting are worth another attempt; any other 4xx will fail the same
// way next time.
func isRetryable(err error) bool {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return apiErr.Code >= http.StatusInternalServerError ||
			apiErr.Code == http.StatusTooManyRequests
	}
	// transport-level failure, no HTTP status to go by
	return true
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

func toGoogleEvent(body event.EventBody) *gcal.Event {
	return &gcal.Event{
		Summary:     body.Summary,
		Description: body.Description,
		Location:    body.Location,
		Start:       toEventDateTime(body.Start),
		End:         toEventDateTime(body.End),
		Attendees:   toEventAttendees(body.Attendees),
		Sequence:    body.Sequence,
		// Attendees share the event but must not reshape it or see
		// each other's responses.
		GuestsCanInviteOthers:   googleapi.Bool(false),
		GuestsCanSeeOtherGuests: googleapi.Bool(false),
		GuestsCanModify:         false,
		ForceSendFields:         []string{"GuestsCanModify"},
	}
}

func toEventDateTime(tk timeutil.TimeKeyword) *gcal.EventDateTime {
	if tk.Kind == timeutil.KindDate {
		return &gcal.EventDateTime{Date: tk.Value}
	}
	return &gcal.EventDateTime{DateTime: tk.Value}
}

func toEventAttendees(emails []string) []*gcal.EventAttendee {
	attendees := make([]*gcal.EventAttendee, 0, len(emails))
	for _, email := range emails {
		attendees = append(attendees, &gcal.EventAttendee{Email: email})
	}
	return attendees
}

func fromGoogleEvent(ev *gcal.Event) *event.RemoteEvent {
	remote := &event.RemoteEvent{
		ID:       ev.Id,
		Sequence: ev.Sequence,
	}
	for _, attendee := range ev.Attendees {
		remote.Attendees = append(remote.Attendees, attendee.Email)
	}
	return remote
}
