// Package seed loads users and events from a YAML fixture file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/eventpilot/internal/calendar"
	"github.com/dukerupert/eventpilot/internal/model"
)

// File is the fixture layout. Events name people by email address.
type File struct {
	Users  []User  `yaml:"users"`
	Events []Event `yaml:"events"`
}

type User struct {
	FullName     string `yaml:"full_name"`
	EmailAddress string `yaml:"email_address"`
}

type Event struct {
	Title        string    `yaml:"title"`
	Description  string    `yaml:"description"`
	Start        time.Time `yaml:"start"`
	End          time.Time `yaml:"end"`
	Organizer    string    `yaml:"organizer"`
	Participants []string  `yaml:"participants"`

	// Meeting books the event for every participant as well.
	Meeting bool `yaml:"meeting"`
}

// Target is the slice of calendar.Service the loader needs.
type Target interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, fullName, email string) (*model.User, error)
	CreateBusySchedule(ctx context.Context, in calendar.EventInput) (*model.Event, error)
	CreateMeeting(ctx context.Context, in calendar.EventInput) (*model.Event, error)
}

type Result struct {
	UsersCreated  int
	UsersExisting int
	Events        int
}

func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply creates the file's users, skipping emails that already exist, then
// books its events in order. It stops at the first failing event.
func Apply(ctx context.Context, t Target, f *File) (Result, error) {
	var res Result

	existing, err := t.ListUsers(ctx)
	if err != nil {
		return res, err
	}
	byEmail := make(map[string]string, len(existing))
	for _, u := range existing {
		byEmail[strings.ToLower(u.EmailAddress)] = u.ID
	}

	for _, u := range f.Users {
		key := strings.ToLower(strings.TrimSpace(u.EmailAddress))
		if _, ok := byEmail[key]; ok {
			res.UsersExisting++
			continue
		}
		created, err := t.CreateUser(ctx, u.FullName, u.EmailAddress)
		if err != nil {
			return res, fmt.Errorf("user %s: %w", u.EmailAddress, err)
		}
		byEmail[key] = created.ID
		res.UsersCreated++
	}

	lookup := func(email string) (string, error) {
		id, ok := byEmail[strings.ToLower(strings.TrimSpace(email))]
		if !ok {
			return "", fmt.Errorf("%s: %w", email, calendar.ErrUserNotFound)
		}
		return id, nil
	}

	for i, e := range f.Events {
		organizerID, err := lookup(e.Organizer)
		if err != nil {
			return res, fmt.Errorf("event %d (%s): organizer %w", i, e.Title, err)
		}
		in := calendar.EventInput{
			Title:       e.Title,
			Description: e.Description,
			StartTime:   e.Start,
			EndTime:     e.End,
			OrganizerID: organizerID,
		}
		for _, p := range e.Participants {
			id, err := lookup(p)
			if err != nil {
				return res, fmt.Errorf("event %d (%s): participant %w", i, e.Title, err)
			}
			in.ParticipantIDs = append(in.ParticipantIDs, id)
		}

		book := t.CreateBusySchedule
		if e.Meeting {
			book = t.CreateMeeting
		}
		if _, err := book(ctx, in); err != nil {
			return res, fmt.Errorf("event %d (%s): %w", i, e.Title, err)
		}
		res.Events++
	}
	return res, nil
}
