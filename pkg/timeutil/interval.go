package timeutil

import "time"

// IntervalsPerWeek is the number of three-hour slots in a week.
const IntervalsPerWeek = 56

// boundaryGrace is how far past a three-hour boundary a timestamp may be
// while still counting as the boundary itself. Schedulers rarely fire at
// the exact second, so the first few minutes of a slot belong to it.
const boundaryGrace = 5 * time.Minute

// ToUpdateInterval maps a timestamp to one of the 56 weekly three-hour
// slots, with Monday 00:00 UTC as slot 0.
//
// The raw value rounds the hour up to the next slot. When the timestamp
// sits within boundaryGrace of the start of its slot, floor and ceil
// coincide, so the round-up is undone.
func ToUpdateInterval(timestamp time.Time) int {
	timestamp = timestamp.UTC()

	// time.Weekday starts on Sunday; the interval week starts on Monday.
	weekday := (int(timestamp.Weekday()) + 6) % 7
	interval := 8*weekday + timestamp.Hour()/3 + 1

	offset := time.Duration(timestamp.Hour()%3)*time.Hour +
		time.Duration(timestamp.Minute())*time.Minute +
		time.Duration(timestamp.Second())*time.Second
	if offset < boundaryGrace {
		interval--
	}

	return interval % IntervalsPerWeek
}
