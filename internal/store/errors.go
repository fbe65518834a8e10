package store

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("conflict")

	// ErrInvalidReference is returned when a write points at a missing row.
	ErrInvalidReference = errors.New("invalid reference")
)

// ConflictError names the constraint that rejected a write.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	return "unique constraint violated: " + e.Constraint
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// translateError maps driver errors onto store sentinels.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgerrcode.UniqueViolation:
		return &ConflictError{Constraint: pqErr.Constraint}
	case pgerrcode.ForeignKeyViolation:
		return ErrInvalidReference
	}
	return err
}
