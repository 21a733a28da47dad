package model

import "time"

type User struct {
	ID           string                 `json:"id"`
	FullName     string                 `json:"full_name"`
	EmailAddress string                 `json:"email_address"`
	EventsByDate map[string][]Reference `json:"events_by_date,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Ref returns a Reference to the user using their full name.
func (u User) Ref() Reference {
	return Reference{ID: u.ID, Name: u.FullName}
}
