package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/eventpilot/internal/model"
)

// ScheduleStore keeps each user's ordered list of event references per
// calendar day. Entries are only ever appended; an event's entries are removed
// with the event, or by PruneOrphans when the event disappeared some other way.
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// Append adds ref to the end of the user's list for day and returns the
// resulting list.
func (s *ScheduleStore) Append(userID, day string, ref model.Reference) ([]model.Reference, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := appendEntry(tx, userID, day, ref); err != nil {
		return nil, err
	}
	refs, err := forDay(tx, userID, day)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return refs, nil
}

func appendEntry(q querier, userID, day string, ref model.Reference) error {
	_, err := q.Exec(
		`INSERT INTO user_schedule (user_id, day, position, event_id, title)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM user_schedule WHERE user_id = ? AND day = ?), ?, ?)`,
		userID, day, userID, day, ref.ID, ref.Name,
	)
	if err != nil {
		return fmt.Errorf("append schedule entry: %w", err)
	}
	return nil
}

// ForDay returns the user's references for day in insertion order.
func (s *ScheduleStore) ForDay(userID, day string) ([]model.Reference, error) {
	return forDay(s.db, userID, day)
}

func forDay(q querier, userID, day string) ([]model.Reference, error) {
	rows, err := q.Query(
		`SELECT event_id, title FROM user_schedule WHERE user_id = ? AND day = ? ORDER BY position`,
		userID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}
	defer rows.Close()

	refs := []model.Reference{}
	for rows.Next() {
		var r model.Reference
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// EventIDsForUsers returns the distinct event IDs on any of the users'
// schedules for day.
func (s *ScheduleStore) EventIDsForUsers(userIDs []string, day string) ([]string, error) {
	userIDs = dedupe(userIDs)
	if len(userIDs) == 0 {
		return []string{}, nil
	}

	in, args := inList(userIDs)
	args = append([]any{day}, args...)
	rows, err := s.db.Query(
		`SELECT DISTINCT event_id FROM user_schedule WHERE day = ? AND user_id IN (`+in+`) ORDER BY event_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query schedule event ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ByDate returns every day on the user's schedule keyed by YYYY-MM-DD.
func (s *ScheduleStore) ByDate(userID string) (map[string][]model.Reference, error) {
	rows, err := s.db.Query(
		`SELECT day, event_id, title FROM user_schedule WHERE user_id = ? ORDER BY day, position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query schedule by date: %w", err)
	}
	defer rows.Close()

	byDate := make(map[string][]model.Reference)
	for rows.Next() {
		var day string
		var r model.Reference
		if err := rows.Scan(&day, &r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		byDate[day] = append(byDate[day], r)
	}
	return byDate, rows.Err()
}

// PruneOrphans deletes schedule entries whose event no longer exists and
// reports how many were removed.
func (s *ScheduleStore) PruneOrphans() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM user_schedule WHERE event_id NOT IN (SELECT id FROM events)`)
	if err != nil {
		return 0, fmt.Errorf("prune schedule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
