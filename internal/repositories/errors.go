package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no embed resource matches the lookup.
	ErrNotFound = errors.New("embed resource not found")
	// ErrConflict is returned when a resource id is already taken.
	ErrConflict = errors.New("embed resource conflict")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapConstraintError converts constraint violations into repository errors.
// It reports false for anything else.
func mapConstraintError(err error) (error, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil, false
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return ErrConflict, true
	case pgForeignKeyViolation:
		return ErrNotFound, true
	}
	return nil, false
}
