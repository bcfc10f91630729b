package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/hostocars/internal/persistence"
	"github.com/example/hostocars/internal/persistence/sqlite"
	"github.com/example/hostocars/internal/persistence/sqlite/migration"
	"github.com/example/hostocars/internal/persistence/sqlite/migrations"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database migrated to the requested version.
type SQLiteHarness struct {
	Cars          persistence.CarRepository
	Interventions persistence.InterventionRepository
	Operations    persistence.OperationRepository

	Storage *sqlite.Storage
	Options sqlite.Options
	Clock   *Clock

	cleanup func()
}

// HarnessOption configures NewSQLiteHarness.
type HarnessOption func(*sqlite.Options)

// WithProjectVersion migrates the harness database to v instead of the latest schema.
func WithProjectVersion(v string) HarnessOption {
	return func(o *sqlite.Options) {
		o.Database.ProjectVersion = v
	}
}

// WithLogger sends engine and storage logs to logger.
func WithLogger(logger *slog.Logger) HarnessOption {
	return func(o *sqlite.Options) {
		o.Logger = logger
	}
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// Reopen closes the storage and opens it again with the harness options,
// running startup against the existing file.
func (h *SQLiteHarness) Reopen(tb testing.TB, opts ...HarnessOption) {
	tb.Helper()
	h.Close()
	for _, opt := range opts {
		opt(&h.Options)
	}
	h.open(tb)
}

// NewSQLiteHarness opens a storage in a temporary directory. Callers may
// invoke Close, but the helper also registers a cleanup callback with tb.
func NewSQLiteHarness(tb testing.TB, opts ...HarnessOption) *SQLiteHarness {
	tb.Helper()

	dir := filepath.Join(tb.TempDir(), "data")
	clock := NewClock(ReferenceTime(), time.Second)
	options := sqlite.Options{
		Database: migration.Config{
			Location:       dir,
			Path:           filepath.Join(dir, "hostocars.db"),
			ProjectVersion: migrations.Latest,
		},
		BackupRetain: 3,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:          clock.NowFunc(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	harness := &SQLiteHarness{Options: options, Clock: clock}
	harness.open(tb)
	tb.Cleanup(harness.Close)
	return harness
}

func (h *SQLiteHarness) open(tb testing.TB) {
	tb.Helper()
	storage, err := sqlite.Open(context.Background(), h.Options)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	h.Storage = storage
	h.Cars = storage
	h.Interventions = storage
	h.Operations = storage
	h.cleanup = func() {
		_ = storage.Close()
	}
}
