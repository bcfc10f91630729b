package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/hostocars/internal/version"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingBackup struct {
	calls []bool
	err   error
}

func (b *recordingBackup) Backup(ctx context.Context, preMigration bool) error {
	b.calls = append(b.calls, preMigration)
	return b.err
}

type staticExtractor struct {
	groups []VersionScripts
	err    error
	calls  [][2]version.Version
}

func (x *staticExtractor) Extract(ctx context.Context, from, to version.Version) ([]VersionScripts, error) {
	x.calls = append(x.calls, [2]version.Version{from, to})
	if x.err != nil {
		return nil, x.err
	}
	return x.groups, nil
}

// trackingScript records its version in the applied table and stores it as
// the database version, like a real migration script would.
func trackingScript(ver string) Script {
	v := version.MustParse(ver)
	return TextScript(v, ver+"/001_track.sql", fmt.Sprintf(`-- version %[1]s
CREATE TABLE IF NOT EXISTS "DatabaseInfo" ("key" TEXT PRIMARY KEY, "value" TEXT);
CREATE TABLE IF NOT EXISTS applied (version TEXT NOT NULL);
INSERT INTO applied (version) VALUES ('%[1]s');
INSERT OR REPLACE INTO "DatabaseInfo" ("key", "value")
    VALUES ('version', '%[1]s'); -- bump
`, ver))
}

func trackingGroups(versions ...string) []VersionScripts {
	groups := make([]VersionScripts, 0, len(versions))
	for _, ver := range versions {
		groups = append(groups, VersionScripts{
			Version: version.MustParse(ver),
			Scripts: []Script{trackingScript(ver)},
		})
	}
	return groups
}

func testConfig(t *testing.T, project string) Config {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	return Config{
		Location:       dir,
		Path:           filepath.Join(dir, "hostocars.db"),
		ProjectVersion: project,
	}
}

func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverName, defaultDSN(path))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	return db
}

func execAll(t *testing.T, path string, statements ...string) {
	t.Helper()
	db := openRaw(t, path)
	defer db.Close()
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to execute %q: %v", stmt, err)
		}
	}
}

// seedDatabase creates an existing database at the given stored version.
func seedDatabase(t *testing.T, cfg Config, stored string) {
	t.Helper()
	if err := cfg.ensureLocation(); err != nil {
		t.Fatalf("failed to create location: %v", err)
	}
	execAll(t, cfg.Path,
		`CREATE TABLE "DatabaseInfo" ("key" TEXT PRIMARY KEY, "value" TEXT)`,
		`CREATE TABLE applied (version TEXT NOT NULL)`,
		fmt.Sprintf(`INSERT INTO "DatabaseInfo" ("key", "value") VALUES ('version', '%s')`, stored),
	)
}

func appliedVersions(t *testing.T, path string) []string {
	t.Helper()
	db := openRaw(t, path)
	defer db.Close()

	rows, err := db.Query(`SELECT version FROM applied ORDER BY rowid`)
	if err != nil {
		t.Fatalf("failed to query applied versions: %v", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("failed to scan applied version: %v", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("failed to iterate applied versions: %v", err)
	}
	return out
}

func newTestEngine(t *testing.T, cfg Config, x Extractor, b BackupManager) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, x, b, testLogger())
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}
