package ical

import (
	"bytes"
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"
	"github.com/percal/percal/pkg/event"
	"github.com/percal/percal/pkg/timeutil"
	log "github.com/sirupsen/logrus"
)

var (
	ErrMissingUID            = fmt.Errorf("event has no UID")
	ErrUnexpectedDescription = fmt.Errorf("unexpected event description format")
)

const (
	noTitlePlaceholder  = "(No Title)"
	noDestination       = "No destination specified"
	unspecifiedLocation = "an unspecified location"
	// itemUIDPrefix marks regular per-item events; everything else is a
	// whole-trip span with a provider-generated description.
	itemUIDPrefix = "item-"
)

// Item is one successfully parsed VEVENT, in feed order.
type Item struct {
	UID   string
	Event event.NormalizedEvent
}

// Feed is the result of parsing one ICS payload. Malformed items are
// skipped, not fatal; their messages and any component types the feed is
// not expected to carry are reported so the caller can alert on upstream
// format drift.
type Feed struct {
	Items             []Item
	Malformed         []string
	UnknownComponents []string
}

// ParseFeed parses a raw ICS payload into normalized events, preserving
// the feed's own component order.
func ParseFeed(body []byte) (*Feed, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ICS payload: %w", err)
	}

	feed := &Feed{}
	for _, comp := range cal.Components {
		ve, ok := comp.(*ical.VEvent)
		if !ok {
			// An accepted-provider feed carries only VEVENTs inside
			// the VCALENDAR; anything else means the format changed.
			feed.UnknownComponents = append(feed.UnknownComponents, fmt.Sprintf("%T", comp))
			continue
		}

		uid, norm, err := parseVEvent(ve)
		if err != nil {
			log.Debugf("skipping VEVENT: %v", err)
			feed.Malformed = append(feed.Malformed, err.Error())
			continue
		}
		feed.Items = append(feed.Items, Item{UID: uid, Event: norm})
	}

	return feed, nil
}

func parseVEvent(ve *ical.VEvent) (string, event.NormalizedEvent, error) {
	var norm event.NormalizedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return "", norm, ErrMissingUID
	}
	uid := uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		norm.Summary = p.Value
	}
	if norm.Summary == "" {
		norm.Summary = noTitlePlaceholder
	}

	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		norm.Location = p.Value
	}
	if norm.Location == noDestination {
		norm.Location = unspecifiedLocation
	}

	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		norm.Description = p.Value
	}
	if !strings.HasPrefix(uid, itemUIDPrefix) {
		// Whole-trip spans describe their owner ("<name> is in <place>
		// from ..."); the name is dropped so the shared event reads the
		// same for every attendee.
		rewritten, err := rewriteTripDescription(norm.Description, norm.Location)
		if err != nil {
			return "", norm, fmt.Errorf("%w (uid %s)", err, uid)
		}
		norm.Description = rewritten
	}

	start, end, err := eventTimes(ve)
	if err != nil {
		return "", norm, fmt.Errorf("failed to read times for %s: %w", uid, err)
	}
	norm.Start = start
	norm.End = end

	return uid, norm, nil
}

func rewriteTripDescription(description, location string) (string, error) {
	target := fmt.Sprintf(" is in %s ", location)
	if strings.Count(description, target) != 1 {
		return "", ErrUnexpectedDescription
	}
	parts := strings.SplitN(description, target, 2)
	return fmt.Sprintf("In %s %s", location, parts[1]), nil
}

func eventTimes(ve *ical.VEvent) (timeutil.TimeKeyword, timeutil.TimeKeyword, error) {
	dateOnly := isAllDay(ve)

	var zero timeutil.TimeKeyword
	if dateOnly {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return zero, zero, err
		}
		end, err := ve.GetAllDayEndAt()
		if err != nil {
			return zero, zero, err
		}
		return timeutil.FromTime(start, true), timeutil.FromTime(end, true), nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return zero, zero, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return zero, zero, err
	}
	return timeutil.FromTime(start, false), timeutil.FromTime(end, false), nil
}

// isAllDay detects date-only events by inspecting the DTSTART value form.
func isAllDay(ve *ical.VEvent) bool {
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return false
	}
	if params := dtStart.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(dtStart.Value, "T")
}
