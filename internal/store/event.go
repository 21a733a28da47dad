package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/eventpilot/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventCols = `id, title, description, start_time, end_time, organizer_id,
	recurring, recurrence_count, recurring_starting_date, created_at, updated_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var recurring int
	var startingDate sql.NullTime
	err := scanner.Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &e.OrganizerID,
		&recurring, &e.RecurrenceCount, &startingDate, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Recurring = recurring != 0
	if startingDate.Valid {
		t := startingDate.Time
		e.RecurringStartingDate = &t
	}
	e.Participants = []model.Reference{}
	return &e, nil
}

// Create stores e with its participants and files a schedule entry for each
// attendee on the event's date, all in one transaction. e.ID is assigned when
// empty. Participants are resolved to their users' current names.
func (s *EventStore) Create(e model.Event, attendeeIDs []string) (*model.Event, error) {
	if e.ID == "" {
		e.ID = NewID()
	}
	now := time.Now().UTC()

	var recurring int
	if e.Recurring {
		recurring = 1
	}
	var startingDate sql.NullTime
	if e.RecurringStartingDate != nil {
		startingDate = sql.NullTime{Time: e.RecurringStartingDate.UTC(), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO events (`+eventCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Description, e.StartTime.UTC(), e.EndTime.UTC(), e.OrganizerID,
		recurring, e.RecurrenceCount, startingDate, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	for i, p := range e.Participants {
		if _, err := tx.Exec(
			`INSERT INTO event_participants (event_id, user_id, position) VALUES (?, ?, ?)`,
			e.ID, p.ID, i,
		); err != nil {
			return nil, fmt.Errorf("insert participant: %w", err)
		}
	}

	day := e.DateKey()
	for _, userID := range dedupe(attendeeIDs) {
		if err := appendEntry(tx, userID, day, e.Ref()); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetByID(e.ID)
}

func (s *EventStore) GetByID(id string) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	events := []model.Event{*e}
	if err := s.attachParticipants(events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

func (s *EventStore) List() ([]model.Event, error) {
	return s.list(`SELECT ` + eventCols + ` FROM events ORDER BY start_time, id`)
}

func (s *EventStore) ListByOrganizer(organizerID string) ([]model.Event, error) {
	return s.list(`SELECT `+eventCols+` FROM events WHERE organizer_id = ? ORDER BY start_time, id`, organizerID)
}

// ListByIDs returns the events whose IDs appear in ids, in the order given.
// Unknown IDs are skipped.
func (s *EventStore) ListByIDs(ids []string) ([]model.Event, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []model.Event{}, nil
	}

	in, args := inList(ids)
	events, err := s.list(`SELECT `+eventCols+` FROM events WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}
	ordered := make([]model.Event, 0, len(events))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			ordered = append(ordered, e)
		}
	}
	return ordered, nil
}

func (s *EventStore) list(query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	if err := s.attachParticipants(events); err != nil {
		return nil, err
	}
	return events, nil
}

// attachParticipants fills in Participants for each event with a single query.
func (s *EventStore) attachParticipants(events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, len(events))
	index := make(map[string]int, len(events))
	for i, e := range events {
		ids[i] = e.ID
		index[e.ID] = i
	}

	in, args := inList(ids)
	rows, err := s.db.Query(
		`SELECT p.event_id, u.id, u.full_name
		 FROM event_participants p JOIN users u ON u.id = p.user_id
		 WHERE p.event_id IN (`+in+`)
		 ORDER BY p.event_id, p.position`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventID string
		var r model.Reference
		if err := rows.Scan(&eventID, &r.ID, &r.Name); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		i := index[eventID]
		events[i].Participants = append(events[i].Participants, r)
	}
	return rows.Err()
}

// Delete removes the event, its participants and every schedule entry that
// points at it.
func (s *EventStore) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM user_schedule WHERE event_id = ?`, id); err != nil {
		return fmt.Errorf("delete schedule entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
