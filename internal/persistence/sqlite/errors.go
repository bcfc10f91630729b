package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/hostocars/internal/persistence"
)

// mapError translates driver failures into persistence errors. Both drivers
// report constraint failures in the message text only.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	msg := err.Error()
	for _, marker := range []string{
		"UNIQUE constraint failed",
		"FOREIGN KEY constraint failed",
		"NOT NULL constraint failed",
		"CHECK constraint failed",
	} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
		}
	}
	return err
}
