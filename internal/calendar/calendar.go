// Package calendar is the service layer: it books events onto users'
// schedules, answers conflict and free-slot questions with the schedule
// engine, and announces every change to the configured notifiers.
package calendar

import (
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/eventpilot/internal/model"
	"github.com/dukerupert/eventpilot/internal/schedule"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidEvent  = errors.New("invalid event")
	ErrInvalidUser   = errors.New("invalid user")
	ErrEmailTaken    = errors.New("email address already in use")
)

// EventInput is what callers supply to book an event. The organizer is
// always an attendee; ParticipantIDs may repeat or include the organizer.
type EventInput struct {
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	StartTime             time.Time  `json:"start_time"`
	EndTime               time.Time  `json:"end_time"`
	OrganizerID           string     `json:"organizer_id"`
	ParticipantIDs        []string   `json:"participant_ids"`
	Recurring             bool       `json:"recurring"`
	RecurrenceCount       int        `json:"recurrence_count"`
	RecurringStartingDate *time.Time `json:"recurring_starting_date,omitempty"`
}

func (in *EventInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.OrganizerID = strings.TrimSpace(in.OrganizerID)

	seen := map[string]bool{in.OrganizerID: true}
	ids := make([]string, 0, len(in.ParticipantIDs))
	for _, id := range in.ParticipantIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	in.ParticipantIDs = ids
}

// Validate reports ErrInvalidEvent for a missing title or organizer, a start
// that is not before the end, an event spanning more than one UTC date, or a
// negative recurrence count.
func (in EventInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	case strings.TrimSpace(in.OrganizerID) == "":
		return fmt.Errorf("%w: organizer_id is required", ErrInvalidEvent)
	case in.StartTime.IsZero() || in.EndTime.IsZero():
		return fmt.Errorf("%w: start_time and end_time are required", ErrInvalidEvent)
	case !in.StartTime.Before(in.EndTime):
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidEvent)
	case model.DateKey(in.StartTime) != model.DateKey(in.EndTime):
		return fmt.Errorf("%w: event must start and end on the same day", ErrInvalidEvent)
	case in.RecurrenceCount < 0:
		return fmt.Errorf("%w: recurrence_count must not be negative", ErrInvalidEvent)
	}
	return nil
}

func validateUser(fullName, email string) error {
	if fullName == "" {
		return fmt.Errorf("%w: full_name is required", ErrInvalidUser)
	}
	if email == "" {
		return fmt.Errorf("%w: email_address is required", ErrInvalidUser)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: email_address %q is not valid", ErrInvalidUser, email)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date as a UTC day.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD: %w", s, schedule.ErrInvalidArgument)
	}
	return d, nil
}

const maxHours = math.MaxInt64 / int64(time.Hour)

// ParseDuration accepts a Go duration string ("90m", "2h") or a bare number
// of hours ("2").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration is required: %w", schedule.ErrInvalidArgument)
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if hours, err := strconv.ParseInt(s, 10, 64); err == nil {
		if hours > maxHours || hours < -maxHours {
			return 0, fmt.Errorf("duration %q hours is out of range: %w", s, schedule.ErrInvalidArgument)
		}
		return time.Duration(hours) * time.Hour, nil
	}
	return 0, fmt.Errorf("duration %q is not valid: %w", s, schedule.ErrInvalidArgument)
}
