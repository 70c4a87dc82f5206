package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")
	// ErrMissingReference is returned when a foreign key points nowhere.
	ErrMissingReference = errors.New("missing reference")
	// ErrConflict is returned when a conditional write found the row in
	// another state.
	ErrConflict = errors.New("conflict")
)

// Store is the Postgres-backed identity and record store.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
		case "23503":
			return fmt.Errorf("%w: %s", ErrMissingReference, pqErr.Constraint)
		case "22P02":
			// malformed uuid: nothing can match it
			return ErrNotFound
		}
	}
	return fmt.Errorf("db error: %w", err)
}
