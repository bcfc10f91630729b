package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/example/hostocars/internal/query"
)

// preparer is satisfied by *sqlx.DB and *sqlx.Tx.
type preparer interface {
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
}

// prepare validates q, converts its arguments and prepares it on p.
func prepare(ctx context.Context, p preparer, q query.Query, wantGeneratedKeys bool) (*Statement, error) {
	if err := q.Validate(); err != nil {
		return nil, newError(KindPrepare, "validate query", err)
	}
	values, err := q.BindValues()
	if err != nil {
		return nil, newError(KindPrepare, "bind arguments", err)
	}
	stmt, err := p.PreparexContext(ctx, q.SQL())
	if err != nil {
		return nil, newError(KindPrepare, "error while generating the SQL statement", err)
	}
	return &Statement{stmt: stmt, query: q, args: values, generatedKeys: wantGeneratedKeys}, nil
}

// Statement is a prepared statement with its arguments already bound.
type Statement struct {
	stmt          *sqlx.Stmt
	query         query.Query
	args          []any
	generatedKeys bool
}

// ExecResult reports the outcome of Statement.Exec.
type ExecResult struct {
	RowsAffected int64
	// GeneratedKey is the last inserted row id. It is only set when the
	// statement was prepared with generated keys requested.
	GeneratedKey    int64
	HasGeneratedKey bool
}

// SQL returns the statement text.
func (s *Statement) SQL() string { return s.query.SQL() }

// Args returns the bound values; element i is bound at parameter index i+1.
func (s *Statement) Args() []any { return append([]any(nil), s.args...) }

// Exec runs the statement.
func (s *Statement) Exec(ctx context.Context) (ExecResult, error) {
	res, err := s.stmt.ExecContext(ctx, s.args...)
	if err != nil {
		return ExecResult{}, newError(KindSQL, "exec "+s.query.SQL(), err)
	}
	var out ExecResult
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return ExecResult{}, newError(KindSQL, "rows affected", err)
	}
	if s.generatedKeys {
		if out.GeneratedKey, err = res.LastInsertId(); err != nil {
			return ExecResult{}, newError(KindSQL, "generated key", err)
		}
		out.HasGeneratedKey = true
	}
	return out, nil
}

// Query runs the statement and returns its rows.
func (s *Statement) Query(ctx context.Context) (*sqlx.Rows, error) {
	rows, err := s.stmt.QueryxContext(ctx, s.args...)
	if err != nil {
		return nil, newError(KindSQL, "query "+s.query.SQL(), err)
	}
	return rows, nil
}

// Row is the result of QueryRow.
type Row struct {
	row *sqlx.Row
	sql string
}

// Scan copies the columns of the row into dest. Every failure, including
// sql.ErrNoRows, is returned as a KindSQL error wrapping the driver cause.
func (r *Row) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return newError(KindSQL, "query "+r.sql, err)
	}
	return nil
}

// QueryRow runs the statement expecting at most one row. Errors are deferred
// to Scan.
func (s *Statement) QueryRow(ctx context.Context) *Row {
	return &Row{row: s.stmt.QueryRowxContext(ctx, s.args...), sql: s.query.SQL()}
}

// Select scans every row into dest, a pointer to a slice.
func (s *Statement) Select(ctx context.Context, dest any) error {
	if err := s.stmt.SelectContext(ctx, dest, s.args...); err != nil {
		return newError(KindSQL, "select "+s.query.SQL(), err)
	}
	return nil
}

// Close releases the prepared statement.
func (s *Statement) Close() error {
	if err := s.stmt.Close(); err != nil {
		return newError(KindSQL, "close "+s.query.SQL(), err)
	}
	return nil
}
