package migration

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrHandleClosed is returned when the handle is used while closed.
var ErrHandleClosed = errors.New("database handle is closed")

// Handle is the engine's single live database connection.
//
// It is opened once at startup, closed while a script executes (each statement
// then runs on a private connection) and reopened afterwards. Handle is not
// safe for concurrent use.
type Handle struct {
	driver string
	dsn    string
	db     *sqlx.DB
}

// NewHandle returns a closed handle for the given driver and data source.
func NewHandle(driver, dsn string) *Handle {
	return &Handle{driver: driver, dsn: dsn}
}

// Open connects the handle. Opening an open handle is a no-op.
func (h *Handle) Open(ctx context.Context) error {
	if h.db != nil {
		return nil
	}
	db, err := h.connect(ctx)
	if err != nil {
		return err
	}
	h.db = db
	return nil
}

// Close releases the connection. Closing a closed handle is a no-op.
func (h *Handle) Close() error {
	if h.db == nil {
		return nil
	}
	db := h.db
	h.db = nil
	return db.Close()
}

// IsOpen reports whether the handle holds a live connection.
func (h *Handle) IsOpen() bool { return h.db != nil }

// DB returns the live connection.
func (h *Handle) DB() (*sqlx.DB, error) {
	if h.db == nil {
		return nil, ErrHandleClosed
	}
	return h.db, nil
}

// connect opens a fresh connection that is not retained by the handle.
func (h *Handle) connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open(h.driver, h.dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
