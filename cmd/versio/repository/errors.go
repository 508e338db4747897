package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an insert hits a unique constraint.
	// Callers use it as the arbitration signal for optimistic inserts.
	ErrConflict = errors.New("conflict")
)

// uniqueViolation is the Postgres error code for unique constraint violations
const uniqueViolation = "23505"

// translateError maps driver-level errors to repository sentinels
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
