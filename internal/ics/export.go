// Package ics renders booked events as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/eventpilot/internal/model"
)

const productID = "-//EventPilot//Calendar Export//EN"

// Feed is one exported calendar. People maps user IDs to users so organizers
// and participants can be written with their email addresses; anyone missing
// from it is left out of the attendee list.
type Feed struct {
	Name   string
	Events []model.Event
	People map[string]model.User
	Now    time.Time
}

// Build assembles the VCALENDAR for f.
func Build(f Feed) *ical.Calendar {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if f.Name != "" {
		cal.SetName(f.Name)
	}

	for _, e := range f.Events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(now.UTC())
		ve.SetStartAt(e.StartTime.UTC())
		ve.SetEndAt(e.EndTime.UTC())
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt.UTC())
		}
		if !e.UpdatedAt.IsZero() {
			ve.SetModifiedAt(e.UpdatedAt.UTC())
		}

		if org, ok := f.People[e.OrganizerID]; ok {
			ve.SetOrganizer(mailto(org), ical.WithCN(org.FullName))
		}
		for _, p := range e.Participants {
			u, ok := f.People[p.ID]
			if !ok {
				continue
			}
			ve.AddAttendee(mailto(u),
				ical.WithCN(u.FullName),
				ical.CalendarUserTypeIndividual,
				ical.ParticipationRoleReqParticipant,
				ical.ParticipationStatusNeedsAction,
			)
		}
	}
	return cal
}

// Export writes f to w as text/calendar.
func Export(w io.Writer, f Feed) error {
	if err := Build(f).SerializeTo(w); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}

func mailto(u model.User) string {
	return "mailto:" + u.EmailAddress
}
