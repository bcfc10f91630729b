package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")

	// ErrConstraintViolation is returned when a record breaks a required
	// field, uniqueness or reference rule.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
