package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/example/hostocars/internal/query"
	"github.com/example/hostocars/internal/version"
)

func newLedgerEngine(t *testing.T) *Engine {
	t.Helper()
	schema := TextScript(version.MustParse("1.0.0"), "1.0.0/001_schema.sql", `
CREATE TABLE "DatabaseInfo" ("key" TEXT PRIMARY KEY, "value" TEXT);
CREATE TABLE ledger (id INTEGER PRIMARY KEY AUTOINCREMENT, label TEXT NOT NULL);
INSERT INTO "DatabaseInfo" ("key", "value") VALUES ('version', '1.0.0');
`)
	extractor := &staticExtractor{groups: []VersionScripts{{Version: version.MustParse("1.0.0"), Scripts: []Script{schema}}}}
	engine := newTestEngine(t, testConfig(t, "1.0.0"), extractor, &recordingBackup{})
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	return engine
}

func insertLedger(ctx context.Context, tx *Tx, label any) error {
	q := query.New(`INSERT INTO ledger (label) VALUES (?1)`, query.Argument{Column: "label", Value: label, Type: query.Text})
	stmt, err := tx.PrepareStatement(ctx, q, true)
	if err != nil {
		return err
	}
	defer stmt.Close()
	_, err = stmt.Exec(ctx)
	return err
}

func ledgerCount(t *testing.T, engine *Engine) int64 {
	t.Helper()
	stmt, err := engine.PrepareStatement(context.Background(), query.New(`SELECT COUNT(*) FROM ledger`), false)
	if err != nil {
		t.Fatalf("PrepareStatement returned error: %v", err)
	}
	defer stmt.Close()
	var n int64
	if err := stmt.QueryRow(context.Background()).Scan(&n); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	return n
}

func TestEngine_WithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when the callback succeeds", func(t *testing.T) {
		engine := newLedgerEngine(t)
		err := engine.WithTransaction(ctx, func(tx *Tx) error {
			if err := insertLedger(ctx, tx, "first"); err != nil {
				return err
			}
			return insertLedger(ctx, tx, "second")
		})
		if err != nil {
			t.Fatalf("WithTransaction returned error: %v", err)
		}
		if n := ledgerCount(t, engine); n != 2 {
			t.Fatalf("expected 2 rows, got %d", n)
		}
	})

	t.Run("rolls back every statement when one fails", func(t *testing.T) {
		engine := newLedgerEngine(t)
		err := engine.WithTransaction(ctx, func(tx *Tx) error {
			if err := insertLedger(ctx, tx, "kept until rollback"); err != nil {
				return err
			}
			return insertLedger(ctx, tx, nil)
		})
		if !errors.Is(err, ErrSQL) {
			t.Fatalf("expected ErrSQL from the failing insert, got %v", err)
		}
		if n := ledgerCount(t, engine); n != 0 {
			t.Fatalf("expected the first insert to be rolled back, got %d rows", n)
		}
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		engine := newLedgerEngine(t)
		func() {
			defer func() {
				if recover() == nil {
					t.Fatal("expected the panic to propagate")
				}
			}()
			_ = engine.WithTransaction(ctx, func(tx *Tx) error {
				if err := insertLedger(ctx, tx, "lost"); err != nil {
					return err
				}
				panic("boom")
			})
		}()
		if n := ledgerCount(t, engine); n != 0 {
			t.Fatalf("expected rollback after panic, got %d rows", n)
		}
	})

	t.Run("closed handle", func(t *testing.T) {
		engine := newLedgerEngine(t)
		if err := engine.Close(); err != nil {
			t.Fatalf("Close returned error: %v", err)
		}
		err := engine.WithTransaction(ctx, func(*Tx) error { return nil })
		if !errors.Is(err, ErrSQL) || !errors.Is(err, ErrHandleClosed) {
			t.Fatalf("expected ErrSQL wrapping ErrHandleClosed, got %v", err)
		}
	})
}
