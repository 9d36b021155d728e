package ical

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ics(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//Test//EN"}, lines...)
	all = append(all, "END:VCALENDAR")
	return []byte(strings.Join(all, "\r\n") + "\r\n")
}

func TestParseFeed(t *testing.T) {
	t.Run("parses a timed event with plain description", func(t *testing.T) {
		// given
		body := ics(
			"BEGIN:VEVENT",
			"UID:item-1",
			"SUMMARY:Flight to Boston",
			"LOCATION:BOS",
			"DESCRIPTION:Seat 14C",
			"DTSTART:20260401T120000Z",
			"DTEND:20260401T150000Z",
			"END:VEVENT",
		)

		// when
		feed, err := ParseFeed(body)

		// then
		require.NoError(t, err)
		require.Len(t, feed.Items, 1)
		item := feed.Items[0]
		assert.Equal(t, "item-1", item.UID)
		assert.Equal(t, "Flight to Boston", item.Event.Summary)
		assert.Equal(t, "BOS", item.Event.Location)
		assert.Equal(t, "Seat 14C", item.Event.Description)
		assert.Equal(t, "dateTime", string(item.Event.Start.Kind))
		assert.Equal(t, "2026-04-01T12:00:00.000Z", item.Event.Start.Value)
		assert.Equal(t, "2026-04-01T15:00:00.000Z", item.Event.End.Value)
		assert.Empty(t, feed.Malformed)
		assert.Empty(t, feed.UnknownComponents)
	})

	t.Run("parses an all-day event", func(t *testing.T) {
		// given
		body := ics(
			"BEGIN:VEVENT",
			"UID:item-2",
			"SUMMARY:Hotel stay",
			"DTSTART;VALUE=DATE:20260401",
			"DTEND;VALUE=DATE:20260406",
			"END:VEVENT",
		)

		// when
		feed, err := ParseFeed(body)

		// then
		require.NoError(t, err)
		require.Len(t, feed.Items, 1)
		item := feed.Items[0]
		assert.Equal(t, "date", string(item.Event.Start.Kind))
		assert.Equal(t, "2026-04-01", item.Event.Start.Value)
		assert.Equal(t, "2026-04-06", item.Event.End.Value)
	})

	t.Run("rewrites trip span description", func(t *testing.T) {
		// given
		body := ics(
			"BEGIN:VEVENT",
			"UID:trip-span-9",
			"SUMMARY:Boston April 2026",
			"LOCATION:Boston",
			"DESCRIPTION:John Doe is in Boston from Apr 1 to Apr 5.",
			"DTSTART;VALUE=DATE:20260401",
			"DTEND;VALUE=DATE:20260406",
			"END:VEVENT",
		)

		// when
		feed, err := ParseFeed(body)

		// then
		require.NoError(t, err)
		require.Len(t, feed.Items, 1)
		assert.Equal(t, "In Boston from Apr 1 to Apr 5.", feed.Items[0].Event.Description)
	})

	t.Run("reports trip span with unexpected description", func(t *testing.T) {
		// given
		body := ics(
			"BEGIN:VEVENT",
			"UID:trip-span-9",
			"SUMMARY:Boston April 2026",
			"LOCATION:Boston",
			"DESCRIPTION:Completely different text",
			"DTSTART;VALUE=DATE:20260401",
			"DTEND;VALUE=DATE:20260406",
			"END:VEVENT",
		)

		// when
		feed, err := ParseFeed(body)

		// then
		require.NoError(t, err)
		assert.Empty(t, feed.Items)
		require.Len(t, feed.Malformed, 1)
		assert.Contains(t, feed.Malformed[0], "unexpected event description")
	})

	t.Run("substitutes placeholders for missing summary and destination", func(t *testing.T) {
		// given
		body := ics(
			"BEGIN:VEVENT",
			"UID:item-3",
			"LOCATION:No destination specified",
			"DTSTART:20260401T120000Z",
			"DTEND:20260401T130000Z",
			"END:VEVENT",
		)

		// when
		feed, err := ParseFeed(body)

		// then
		require.NoError(t, err)
		require.Len(t, feed.Items, 1)
		assert.Equal(t, "(No Title)", feed.Items[0].Event.Summary)
		assert.Equal(t, "an unspecified location", feed.Items[0].Event.Location)
	})

	t.Run("reports event without UID and keeps the rest", func(t *testing.T) {
		// given
		body := ics(
			"BEGIN:VEVENT",
			"SUMMARY:No identity",
			"DTSTART:20260401T120000Z",
			"DTEND:20260401T130000Z",
			"END:VEVENT",
			"BEGIN:VEVENT",
			"UID:item-4",
			"SUMMARY:Valid",
			"DTSTART:20260401T120000Z",
			"DTEND:20260401T130000Z",
			"END:VEVENT",
		)

		// when
		feed, err := ParseFeed(body)

		// then
		require.NoError(t, err)
		require.Len(t, feed.Items, 1)
		assert.Equal(t, "item-4", feed.Items[0].UID)
		require.Len(t, feed.Malformed, 1)
		assert.Contains(t, feed.Malformed[0], "no UID")
	})

	t.Run("reports non-event components", func(t *testing.T) {
		// given
		body := ics(
			"BEGIN:VTODO",
			"UID:todo-1",
			"SUMMARY:Pack bags",
			"END:VTODO",
		)

		// when
		feed, err := ParseFeed(body)

		// then
		require.NoError(t, err)
		assert.Empty(t, feed.Items)
		assert.Len(t, feed.UnknownComponents, 1)
	})

	t.Run("preserves feed order", func(t *testing.T) {
		// given
		body := ics(
			"BEGIN:VEVENT",
			"UID:item-b",
			"SUMMARY:Second flight",
			"DTSTART:20260402T120000Z",
			"DTEND:20260402T130000Z",
			"END:VEVENT",
			"BEGIN:VEVENT",
			"UID:item-a",
			"SUMMARY:First flight",
			"DTSTART:20260401T120000Z",
			"DTEND:20260401T130000Z",
			"END:VEVENT",
		)

		// when
		feed, err := ParseFeed(body)

		// then
		require.NoError(t, err)
		require.Len(t, feed.Items, 2)
		assert.Equal(t, "item-b", feed.Items[0].UID)
		assert.Equal(t, "item-a", feed.Items[1].UID)
	})

	t.Run("fails on payload that is not ICS", func(t *testing.T) {
		_, err := ParseFeed([]byte("this is not a calendar"))

		assert.Error(t, err)
	})
}
