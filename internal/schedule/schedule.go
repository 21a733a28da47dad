// Package schedule implements the interval engine behind EventPilot: conflict
// detection over a user's day and free-slot search across a group's busy time.
//
// Everything here is pure. Functions sort a private copy of their input and
// never retain or mutate caller data, so they are safe for concurrent use.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidArgument is returned for inputs the engine refuses to compute on,
// such as a range that ends before it starts or a non-positive duration.
var ErrInvalidArgument = errors.New("invalid argument")

// TimeRange is a closed interval of instants within one calendar day.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate reports ErrInvalidArgument when Start is after End.
func (r TimeRange) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("range %s-%s ends before it starts: %w",
			r.Start.Format(time.TimeOnly), r.End.Format(time.TimeOnly), ErrInvalidArgument)
	}
	return nil
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// IdentifiedInterval is a TimeRange tagged with the ID of the event it came from.
type IdentifiedInterval struct {
	TimeRange
	ID string `json:"id"`
}

// FreeSlot is an open window returned by FindFreeSlots.
type FreeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the slot.
func (s FreeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Day is the boundary a free-slot search is clamped to. Both ends are inclusive.
type Day struct {
	Start time.Time
	End   time.Time
}

// lastInstant is the offset of 23:59:59 from midnight.
const lastInstant = 24*time.Hour - time.Second

// DayOf returns [00:00:00, 23:59:59] of the calendar day containing t, in t's location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return Day{Start: start, End: start.Add(lastInstant)}
}

// Validate reports ErrInvalidArgument when the day ends before it starts.
func (d Day) Validate() error {
	if d.End.Before(d.Start) {
		return fmt.Errorf("day ends before it starts: %w", ErrInvalidArgument)
	}
	return nil
}

// clamp restricts r to the day. ok is false when r lies entirely outside it.
func (d Day) clamp(r TimeRange) (TimeRange, bool) {
	if r.End.Before(d.Start) || r.Start.After(d.End) {
		return TimeRange{}, false
	}
	if r.Start.Before(d.Start) {
		r.Start = d.Start
	}
	if r.End.After(d.End) {
		r.End = d.End
	}
	return r, true
}
