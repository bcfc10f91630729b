package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/hostocars/internal/query"
	"github.com/example/hostocars/internal/version"
)

const (
	InfoTable    = "DatabaseInfo"
	KeyColumn    = "key"
	ValueColumn  = "value"
	VersionKey   = "version"
	tracerName   = "github.com/example/hostocars/internal/persistence/sqlite/migration"
	spanStartup  = "migration.startup"
	spanVersion  = "migration.version"
	spanScript   = "migration.script"
	attrRunID    = "migration.run_id"
	attrVersion  = "migration.version"
	attrScript   = "migration.script"
	attrFrom     = "migration.from"
	attrTo       = "migration.to"
	attrState    = "migration.state"
	attrExisting = "migration.existing"
)

// versionQuery reads the stored schema version.
var versionQuery = query.Select(InfoTable, []string{ValueColumn}, false).
	Where(query.Str(KeyColumn, VersionKey)).
	MustQuery()

// Engine owns the database connection, brings the schema to the project
// version at startup and prepares statements for the rest of the application.
//
// Engine is not safe for concurrent use; Start must complete before any other
// caller uses PrepareStatement.
type Engine struct {
	cfg       Config
	project   version.Version
	handle    *Handle
	extractor Extractor
	backup    BackupManager
	logger    *slog.Logger
	tracer    trace.Tracer
	state     State
}

// NewEngine validates cfg and returns an engine with a closed handle.
// Configuration errors are reported before any connection is opened.
func NewEngine(cfg Config, extractor Extractor, backup BackupManager, logger *slog.Logger) (*Engine, error) {
	project, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if extractor == nil {
		return nil, newError(KindConfiguration, "script extractor is required", nil)
	}
	if backup == nil {
		return nil, newError(KindConfiguration, "backup manager is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		project:   project,
		handle:    NewHandle(DriverName, cfg.DataSourceName()),
		extractor: extractor,
		backup:    backup,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		state:     StateUninitialized,
	}, nil
}

// State returns the last state reached by Start.
func (e *Engine) State() State { return e.state }

// ProjectVersion returns the configured application version.
func (e *Engine) ProjectVersion() version.Version { return e.project }

// Handle returns the engine's connection handle.
func (e *Engine) Handle() *Handle { return e.handle }

// Start opens the database and brings it to the project version.
//
// A database file that does not exist yet is created and migrated from 0.0.0
// without a backup. An existing database is backed up (routine copy) when it
// is current, or backed up (pre-migration copy) and migrated when it is older.
// A database newer than the project, or one without a readable version, fails
// startup. Errors are always *Error values.
func (e *Engine) Start(ctx context.Context) (err error) {
	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID)
	ctx, span := e.tracer.Start(ctx, spanStartup, trace.WithAttributes(
		attribute.String(attrRunID, runID),
		attribute.String(attrTo, e.project.String()),
	))
	defer func() {
		span.SetAttributes(attribute.String(attrState, e.state.String()))
		if err != nil {
			if e.state != StateAhead {
				e.state = StateFailed
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("database startup failed", "state", e.state.String(), "error", err)
		}
		span.End()
	}()

	logger.Info("initializing the database connection", "path", e.cfg.Path, "project_version", e.project.String())

	if err := e.cfg.ensureLocation(); err != nil {
		return err
	}
	existed, err := e.cfg.databaseExists()
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Bool(attrExisting, existed))

	if err := e.handle.Open(ctx); err != nil {
		return newError(KindSQL, "open database", err)
	}

	if !existed {
		e.state = StateUninitialized
		logger.Info("database file not found, initializing", "version", version.Zero.String())
		if err := e.migrate(ctx, logger, version.Zero, false); err != nil {
			return err
		}
		e.state = StateReady
		logger.Info("connection to database established", "version", e.project.String())
		return nil
	}

	stored, err := e.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String(attrFrom, stored.String()))

	switch e.state = classify(stored, e.project); e.state {
	case StateAhead:
		return &Error{
			Kind:    KindAhead,
			Version: stored.String(),
			Context: fmt.Sprintf("database version %s is newer than application version %s; restore a backup or upgrade the application", stored, e.project),
		}
	case StateUpToDate:
		logger.Info("database is up to date", "version", stored.String())
		if err := e.backup.Backup(ctx, false); err != nil {
			return asIOError(err, "routine backup")
		}
	case StateStale:
		if err := e.migrate(ctx, logger, stored, true); err != nil {
			return err
		}
	}

	e.state = StateReady
	logger.Info("connection to database established", "version", e.project.String())
	return nil
}

// Plan reports what Start would do without migrating or backing up. It only
// opens the handle when the database file already exists.
func (e *Engine) Plan(ctx context.Context) (Plan, error) {
	plan := Plan{State: StateUninitialized, Target: e.project}
	existed, err := e.cfg.databaseExists()
	if err != nil {
		return plan, err
	}
	plan.Existed = existed
	base := version.Zero
	if existed {
		if err := e.handle.Open(ctx); err != nil {
			return plan, newError(KindSQL, "open database", err)
		}
		if plan.Stored, err = e.CurrentVersion(ctx); err != nil {
			plan.State = StateFailed
			return plan, err
		}
		base = plan.Stored
		plan.State = classify(plan.Stored, e.project)
		if plan.State != StateStale {
			return plan, nil
		}
	}
	groups, err := e.pending(ctx, base)
	if err != nil {
		return plan, err
	}
	for _, g := range groups {
		plan.Pending = append(plan.Pending, g.Version)
	}
	return plan, nil
}

// CurrentVersion reads the version stored in the info table.
func (e *Engine) CurrentVersion(ctx context.Context) (version.Version, error) {
	e.logger.Debug("retrieving the current database version")

	stmt, err := e.PrepareStatement(ctx, versionQuery, false)
	if err != nil {
		return version.Version{}, &Error{Kind: KindUnreadableVersion, Context: "prepare version query", Err: err}
	}
	defer stmt.Close()

	var raw string
	if err := stmt.QueryRow(ctx).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return version.Version{}, newError(KindUnreadableVersion, "no version row in "+InfoTable, nil)
		}
		return version.Version{}, newError(KindUnreadableVersion, "read version", errors.Unwrap(err))
	}
	v, err := version.Parse(raw)
	if err != nil {
		return version.Version{}, newError(KindConfiguration, "stored version", err)
	}
	e.logger.Debug("current database version retrieved", "version", v.String())
	return v, nil
}

// PrepareStatement prepares q on the live connection and binds its arguments
// in order, argument i at parameter index i+1. When wantGeneratedKeys is set,
// Exec reports the generated row id.
func (e *Engine) PrepareStatement(ctx context.Context, q query.Query, wantGeneratedKeys bool) (*Statement, error) {
	db, err := e.handle.DB()
	if err != nil {
		return nil, newError(KindPrepare, "error while generating the SQL statement", err)
	}
	return prepare(ctx, db, q, wantGeneratedKeys)
}

// Close releases the connection.
func (e *Engine) Close() error {
	return e.handle.Close()
}

// migrate applies every version in (base, project], in ascending order.
func (e *Engine) migrate(ctx context.Context, logger *slog.Logger, base version.Version, backup bool) error {
	e.state = StateMigrating
	logger.Info("updating the database", "from", base.String(), "to", e.project.String())
	start := time.Now()

	if backup {
		if err := e.backup.Backup(ctx, true); err != nil {
			return asIOError(err, "pre-migration backup")
		}
	}

	groups, err := e.pending(ctx, base)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if err := e.applyVersion(ctx, logger, group); err != nil {
			return err
		}
	}

	logger.Info("database migration completed",
		"from", base.String(),
		"to", e.project.String(),
		"versions", len(groups),
		"duration", time.Since(start))
	return nil
}

func (e *Engine) applyVersion(ctx context.Context, logger *slog.Logger, group VersionScripts) (err error) {
	ver := group.Version.String()
	ctx, span := e.tracer.Start(ctx, spanVersion, trace.WithAttributes(attribute.String(attrVersion, ver)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for _, script := range group.Scripts {
		_, sspan := e.tracer.Start(ctx, spanScript, trace.WithAttributes(
			attribute.String(attrVersion, ver),
			attribute.String(attrScript, script.Name),
		))
		err := executeScript(ctx, e.handle, script, logger)
		if err != nil {
			sspan.RecordError(err)
			sspan.SetStatus(codes.Error, err.Error())
		}
		sspan.End()
		if err != nil {
			return err
		}
	}
	logger.Info("database successfully updated", "version", ver)
	return nil
}

// pending asks the extractor for [base, project] and keeps only versions in
// (base, project], ascending. Extractors may over-return; anything outside the
// window is dropped.
func (e *Engine) pending(ctx context.Context, base version.Version) ([]VersionScripts, error) {
	groups, err := e.extractor.Extract(ctx, base, e.project)
	if err != nil {
		return nil, asIOError(err, fmt.Sprintf("extract scripts %s..%s", base, e.project))
	}
	return selectWindow(groups, base, e.project), nil
}

func selectWindow(groups []VersionScripts, base, target version.Version) []VersionScripts {
	out := make([]VersionScripts, 0, len(groups))
	for _, g := range groups {
		if g.Version.Within(base, target) {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Version.Less(out[j].Version)
	})
	return out
}

func classify(stored, project version.Version) State {
	switch c := version.Compare(stored, project); {
	case c > 0:
		return StateAhead
	case c == 0:
		return StateUpToDate
	default:
		return StateStale
	}
}

// asIOError keeps migration errors as they are and tags anything else as I/O.
func asIOError(err error, what string) error {
	var me *Error
	if errors.As(err, &me) {
		return err
	}
	return newError(KindIO, what, err)
}
