package migration

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/hostocars/internal/query"
)

// Tx is a transaction on the engine's live connection.
type Tx struct {
	tx *sqlx.Tx
}

// PrepareStatement prepares q inside the transaction, with the same binding
// rules as Engine.PrepareStatement.
func (t *Tx) PrepareStatement(ctx context.Context, q query.Query, wantGeneratedKeys bool) (*Statement, error) {
	return prepare(ctx, t.tx, q, wantGeneratedKeys)
}

// WithTransaction runs fn in a transaction on the live connection. The
// transaction is committed when fn returns nil and rolled back otherwise.
//
// The connection serves one transaction at a time: inside fn, statements must
// be prepared on tx, not on the engine.
func (e *Engine) WithTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	db, err := e.handle.DB()
	if err != nil {
		return newError(KindSQL, "begin transaction", err)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return newError(KindSQL, "begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return newError(KindSQL, "commit transaction", err)
	}
	return nil
}
