package timeutil

import (
	"fmt"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05.000Z"
)

var ErrUnparseableTime = fmt.Errorf("value matches neither date nor date-time format")

// Kind distinguishes whole-day values from instants. The values double as
// the field selector in the calendar API wire format.
type Kind string

const (
	KindDate     Kind = "date"
	KindDateTime Kind = "dateTime"
)

// TimeKeyword is a tagged timestamp: a calendar day ("2006-01-02") or a
// UTC instant ("2006-01-02T15:04:05.000Z"). Non-UTC offsets are not
// representable; FromTime forces UTC before formatting.
type TimeKeyword struct {
	Kind  Kind
	Value string
}

func FromTime(t time.Time, dateOnly bool) TimeKeyword {
	t = t.UTC()
	if dateOnly {
		return TimeKeyword{Kind: KindDate, Value: t.Format(dateLayout)}
	}
	return TimeKeyword{Kind: KindDateTime, Value: t.Format(dateTimeLayout)}
}

// Parse tries the date format first and falls back to the date-time format.
func Parse(value string) (TimeKeyword, error) {
	if _, err := time.Parse(dateLayout, value); err == nil {
		return TimeKeyword{Kind: KindDate, Value: value}, nil
	}
	if _, err := time.Parse(dateTimeLayout, value); err == nil {
		return TimeKeyword{Kind: KindDateTime, Value: value}, nil
	}
	return TimeKeyword{}, fmt.Errorf("%w: %q", ErrUnparseableTime, value)
}

// Time converts the keyword back to a time.Time in UTC. Date values map to
// midnight of that day.
func (tk TimeKeyword) Time() (time.Time, error) {
	layout := dateLayout
	if tk.Kind == KindDateTime {
		layout = dateTimeLayout
	}
	t, err := time.Parse(layout, tk.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTime, tk.Value)
	}
	return t.UTC(), nil
}

// DateString truncates the keyword to its calendar-day component.
func (tk TimeKeyword) DateString() string {
	if tk.Kind == KindDate {
		return tk.Value
	}
	if len(tk.Value) >= len(dateLayout) {
		return tk.Value[:len(dateLayout)]
	}
	return tk.Value
}

// After reports whether the keyword is strictly after t.
func (tk TimeKeyword) After(t time.Time) (bool, error) {
	v, err := tk.Time()
	if err != nil {
		return false, err
	}
	return v.After(t.UTC()), nil
}
