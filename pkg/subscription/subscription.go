package subscription

import (
	"fmt"
	"slices"

	"github.com/percal/percal/pkg/timeutil"
)

// MaxCalendars caps the number of feed links one user may subscribe to.
const MaxCalendars = 4

var (
	ErrInvalidFeed      = fmt.Errorf("feed link is not from an accepted provider")
	ErrTooManyCalendars = fmt.Errorf("subscription already holds the maximum number of calendars")
	ErrBadFrequency     = fmt.Errorf("unknown update frequency")
	ErrNotSubscribed    = fmt.Errorf("user has no subscription")
)

// frequencies maps a frequency label to how many of the week's 56
// three-hour intervals trigger a sync for the user.
var frequencies = map[string]int{
	"three-hrs": 56,
	"six-hrs":   28,
	"half-day":  14,
	"day":       7,
	"two-day":   4,
	"week":      1,
}

// UserSubscription is one user's slice of the shared calendar: the feeds
// they follow, when their syncs run, and which events their last
// completed sync found still upcoming.
type UserSubscription struct {
	// Owner is the stable user ID, also the attendee ID on events.
	Owner string
	// Email is the address invited to the shared calendar events.
	Email string
	// Calendars holds validated feed links, in subscription order.
	Calendars []string
	// UpdateIntervals are the three-hour interval indices at which this
	// subscription syncs. Sorted, all share the same phase.
	UpdateIntervals []int
	// Upcoming holds the UIDs of not-yet-ended events seen by the last
	// completed sync. Sorted and unique.
	Upcoming []string
}

func (s *UserSubscription) SyncsAt(interval int) bool {
	return slices.Contains(s.UpdateIntervals, interval)
}

// Frequency returns the label matching the subscription's interval count,
// or an empty string when the stored intervals match no known frequency.
func (s *UserSubscription) Frequency() string {
	for label, count := range frequencies {
		if count == len(s.UpdateIntervals) {
			return label
		}
	}
	return ""
}

// UpdateString renders the sync cadence for display.
func (s *UserSubscription) UpdateString() string {
	switch s.Frequency() {
	case "three-hrs":
		return "every three hours"
	case "six-hrs":
		return "every six hours"
	case "half-day":
		return "every twelve hours"
	case "day":
		return "once a day"
	case "two-day":
		return "every two days"
	case "week":
		return "once a week"
	}
	return "at an unknown cadence"
}

// IntervalsForFrequency spreads the requested frequency evenly over the
// week, keeping base as the phase so a user's sync times stay stable when
// the frequency changes.
func IntervalsForFrequency(frequency string, base int) ([]int, error) {
	count, ok := frequencies[frequency]
	if !ok {
		return nil, ErrBadFrequency
	}

	base = ((base % timeutil.IntervalsPerWeek) + timeutil.IntervalsPerWeek) % timeutil.IntervalsPerWeek
	stride := timeutil.IntervalsPerWeek / count
	intervals := make([]int, 0, count)
	for k := 0; k < count; k++ {
		intervals = append(intervals, (base+k*stride)%timeutil.IntervalsPerWeek)
	}
	slices.Sort(intervals)
	return intervals, nil
}
