package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/hostocars/internal/persistence"
	"github.com/example/hostocars/internal/persistence/sqlite/migration"
	"github.com/example/hostocars/internal/persistence/sqlite/migrations"
	"github.com/example/hostocars/internal/query"
)

// Options configures Storage.
type Options struct {
	Database migration.Config

	// BackupDir receives database backups. Defaults to "<Location>/backups".
	BackupDir string

	// BackupRetain is the number of pre-migration copies kept.
	BackupRetain int

	Logger *slog.Logger

	// Now stamps backup file names. Defaults to time.Now.
	Now func() time.Time
}

// Storage is the SQLite implementation of the persistence repositories. All
// statements go through the migration engine's single connection.
type Storage struct {
	engine *migration.Engine
	db     preparer
	logger *slog.Logger

	// bound is set on the copy handed to a transaction callback.
	bound bool
}

// preparer is satisfied by *migration.Engine and *migration.Tx.
type preparer interface {
	PrepareStatement(ctx context.Context, q query.Query, wantGeneratedKeys bool) (*migration.Statement, error)
}

var (
	_ persistence.CarRepository          = (*Storage)(nil)
	_ persistence.InterventionRepository = (*Storage)(nil)
	_ persistence.OperationRepository    = (*Storage)(nil)
)

// NewEngine builds a migration engine over the embedded application schema
// without starting it.
func NewEngine(opts Options) (*migration.Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := opts.BackupDir
	if dir == "" {
		dir = filepath.Join(opts.Database.Location, "backups")
	}
	backup := migration.NewFileBackup(opts.Database.Path, dir, opts.BackupRetain, logger)
	if opts.Now != nil {
		backup.Now = opts.Now
	}
	return migration.NewEngine(opts.Database, migration.NewFSExtractor(migrations.FS, "."), backup, logger)
}

// Open brings the database to the project version and returns a ready storage.
func Open(ctx context.Context, opts Options) (*Storage, error) {
	engine, err := NewEngine(opts)
	if err != nil {
		return nil, err
	}
	if err := engine.Start(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{engine: engine, db: engine, logger: logger}, nil
}

// Engine exposes the migration engine backing the storage.
func (s *Storage) Engine() *migration.Engine { return s.engine }

// Close releases the database connection.
func (s *Storage) Close() error {
	return s.engine.Close()
}

// inTx runs fn with a storage whose statements share one transaction. A
// storage already bound to a transaction passes itself.
func (s *Storage) inTx(ctx context.Context, fn func(tx *Storage) error) error {
	if s.bound {
		return fn(s)
	}
	return s.engine.WithTransaction(ctx, func(tx *migration.Tx) error {
		return fn(&Storage{engine: s.engine, db: tx, logger: s.logger, bound: true})
	})
}

// exec prepares and runs a statement that returns no rows.
func (s *Storage) exec(ctx context.Context, q query.Query, wantKey bool) (migration.ExecResult, error) {
	stmt, err := s.db.PrepareStatement(ctx, q, wantKey)
	if err != nil {
		return migration.ExecResult{}, err
	}
	defer stmt.Close()

	res, err := stmt.Exec(ctx)
	if err != nil {
		return migration.ExecResult{}, mapError(err)
	}
	return res, nil
}

// each runs q and calls scan for every row.
func (s *Storage) each(ctx context.Context, q query.Query, scan func(*sqlx.Rows) error) error {
	stmt, err := s.db.PrepareStatement(ctx, q, false)
	if err != nil {
		return err
	}
	defer stmt.Close()

	rows, err := stmt.Query(ctx)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	return nil
}

// one runs q and scans its single row, reporting ErrNotFound when there is none.
func (s *Storage) one(ctx context.Context, q query.Query, scan func(*sqlx.Rows) error) error {
	found := false
	err := s.each(ctx, q, func(rows *sqlx.Rows) error {
		if found {
			return nil
		}
		found = true
		return scan(rows)
	})
	if err != nil {
		return err
	}
	if !found {
		return persistence.ErrNotFound
	}
	return nil
}

// scalar runs a single-column single-row query.
func (s *Storage) scalar(ctx context.Context, q query.Query, dest any) error {
	stmt, err := s.db.PrepareStatement(ctx, q, false)
	if err != nil {
		return err
	}
	defer stmt.Close()
	return mapError(stmt.QueryRow(ctx).Scan(dest))
}
