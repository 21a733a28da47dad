package model

import "time"

// Reference points at another record by ID and carries its display name so
// schedules and participant lists can be rendered without a join.
type Reference struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Event struct {
	ID                    string      `json:"id"`
	Title                 string      `json:"title"`
	Description           string      `json:"description"`
	StartTime             time.Time   `json:"start_time"`
	EndTime               time.Time   `json:"end_time"`
	OrganizerID           string      `json:"organizer_id"`
	Participants          []Reference `json:"participants"`
	Recurring             bool        `json:"recurring"`
	RecurrenceCount       int         `json:"recurrence_count"`
	RecurringStartingDate *time.Time  `json:"recurring_starting_date,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// DateKey is the UTC calendar date the event is filed under in schedules.
func (e Event) DateKey() string {
	return DateKey(e.StartTime)
}

// Ref returns a Reference to the event using its title as the name.
func (e Event) Ref() Reference {
	return Reference{ID: e.ID, Name: e.Title}
}

// DateKey formats t as the YYYY-MM-DD schedule key of its UTC date.
func DateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
