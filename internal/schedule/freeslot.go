package schedule

import (
	"fmt"
	"slices"
	"time"
)

// FindFreeSlots returns the maximal windows of day that are not covered by any
// busy range and are at least minDuration long, in chronological order.
//
// Busy ranges may overlap, arrive unsorted, or come from several participants.
// Portions falling outside the day are ignored.
func FindFreeSlots(busy []TimeRange, minDuration time.Duration, day Day) ([]FreeSlot, error) {
	if minDuration <= 0 {
		return nil, fmt.Errorf("minimum duration %s must be positive: %w", minDuration, ErrInvalidArgument)
	}
	if err := day.Validate(); err != nil {
		return nil, err
	}

	clamped := make([]TimeRange, 0, len(busy))
	for _, r := range busy {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if c, ok := day.clamp(r); ok {
			clamped = append(clamped, c)
		}
	}
	slices.SortFunc(clamped, func(a, b TimeRange) int {
		return a.Start.Compare(b.Start)
	})

	slots := []FreeSlot{}
	previousEnd := day.Start
	for _, r := range clamped {
		if r.Start.After(previousEnd) && r.Start.Sub(previousEnd) >= minDuration {
			slots = append(slots, FreeSlot{Start: previousEnd, End: r.Start})
		}
		if r.End.After(previousEnd) {
			previousEnd = r.End
		}
	}
	if day.End.After(previousEnd) && day.End.Sub(previousEnd) >= minDuration {
		slots = append(slots, FreeSlot{Start: previousEnd, End: day.End})
	}
	return slots, nil
}
