package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/eventpilot/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.FullName, &u.EmailAddress, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, full_name, email_address, created_at, updated_at`

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY full_name, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) Create(fullName, email string) (*model.User, error) {
	id := NewID()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO users (id, full_name, email_address, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, fullName, email, now, now,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert user: %w", ErrDuplicateEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

// Upsert inserts u, or replaces the name and email of the user with the same
// ID. An empty ID is assigned a new one.
func (s *UserStore) Upsert(u model.User) (*model.User, error) {
	if u.ID == "" {
		u.ID = NewID()
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO users (id, full_name, email_address, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   full_name = excluded.full_name,
		   email_address = excluded.email_address,
		   updated_at = excluded.updated_at`,
		u.ID, u.FullName, u.EmailAddress, now, now,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("upsert user: %w", ErrDuplicateEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetByID(u.ID)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email_address = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListByIDs returns the users whose IDs appear in ids, in the order given.
// Unknown IDs are skipped; callers compare lengths to detect them.
func (s *UserStore) ListByIDs(ids []string) ([]model.User, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []model.User{}, nil
	}

	in, args := inList(ids)
	rows, err := s.db.Query(`SELECT `+userCols+` FROM users WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("list users by id: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		byID[u.ID] = *u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users by id: %w", err)
	}

	users := make([]model.User, 0, len(byID))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *UserStore) Update(id, fullName, email string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET full_name = ?, email_address = ?, updated_at = ? WHERE id = ?`,
		fullName, email, time.Now().UTC(), id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("update user: %w", ErrDuplicateEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the user. Events they organize, their participation rows
// and their schedule go with them.
func (s *UserStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
