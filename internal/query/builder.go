package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// MaxIdentifierLength bounds table and column names.
const MaxIdentifierLength = 128

var (
	ErrEmptyIdentifier   = errors.New("identifier cannot be empty")
	ErrIdentifierTooLong = errors.New("identifier too long")
	ErrInvalidCharacter  = errors.New("identifier contains invalid character")
	ErrNoColumns         = errors.New("no columns")
)

type kind int

const (
	selectKind kind = iota
	insertKind
	updateKind
	deleteKind
)

// Builder assembles a Query. Errors are deferred until Query is called so
// calls can be chained.
type Builder struct {
	kind     kind
	table    string
	columns  []string
	distinct bool
	values   []Argument
	where    []Argument
	orderBy  []string
}

// Select starts a SELECT of columns from table.
func Select(table string, columns []string, distinct bool) *Builder {
	return &Builder{kind: selectKind, table: table, columns: append([]string(nil), columns...), distinct: distinct}
}

// Insert starts an INSERT of the given column values into table.
func Insert(table string, values ...Argument) *Builder {
	return &Builder{kind: insertKind, table: table, values: append([]Argument(nil), values...)}
}

// Update starts an UPDATE of table setting the given column values.
func Update(table string, set ...Argument) *Builder {
	return &Builder{kind: updateKind, table: table, values: append([]Argument(nil), set...)}
}

// Delete starts a DELETE from table.
func Delete(table string) *Builder {
	return &Builder{kind: deleteKind, table: table}
}

// Where adds equality predicates joined with AND. A null argument (see
// Argument.IsNull) is matched with IS NULL and binds no parameter.
func (b *Builder) Where(args ...Argument) *Builder {
	b.where = append(b.where, args...)
	return b
}

// OrderBy sorts a SELECT by the given columns ascending.
func (b *Builder) OrderBy(columns ...string) *Builder {
	b.orderBy = append(b.orderBy, columns...)
	return b
}

// Query validates the identifiers and returns the assembled Query.
func (b *Builder) Query() (Query, error) {
	if err := ValidateIdentifier(b.table); err != nil {
		return Query{}, fmt.Errorf("table: %w", err)
	}

	var (
		sb   strings.Builder
		args []Argument
	)
	next := func(arg Argument) string {
		args = append(args, arg)
		return "?" + strconv.Itoa(len(args))
	}

	switch b.kind {
	case selectKind:
		if len(b.columns) == 0 {
			return Query{}, fmt.Errorf("select from %s: %w", b.table, ErrNoColumns)
		}
		sb.WriteString("SELECT ")
		if b.distinct {
			sb.WriteString("DISTINCT ")
		}
		cols, err := quoteAll(b.columns)
		if err != nil {
			return Query{}, err
		}
		sb.WriteString(strings.Join(cols, ", "))
		sb.WriteString(" FROM ")
		sb.WriteString(quote(b.table))
	case insertKind:
		if len(b.values) == 0 {
			return Query{}, fmt.Errorf("insert into %s: %w", b.table, ErrNoColumns)
		}
		cols := make([]string, len(b.values))
		marks := make([]string, len(b.values))
		for i, v := range b.values {
			if err := ValidateIdentifier(v.Column); err != nil {
				return Query{}, fmt.Errorf("column: %w", err)
			}
			cols[i] = quote(v.Column)
			marks[i] = next(v)
		}
		fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)", quote(b.table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	case updateKind:
		if len(b.values) == 0 {
			return Query{}, fmt.Errorf("update %s: %w", b.table, ErrNoColumns)
		}
		sets := make([]string, len(b.values))
		for i, v := range b.values {
			if err := ValidateIdentifier(v.Column); err != nil {
				return Query{}, fmt.Errorf("column: %w", err)
			}
			sets[i] = quote(v.Column) + " = " + next(v)
		}
		fmt.Fprintf(&sb, "UPDATE %s SET %s", quote(b.table), strings.Join(sets, ", "))
	case deleteKind:
		sb.WriteString("DELETE FROM ")
		sb.WriteString(quote(b.table))
	}

	if len(b.where) > 0 {
		preds := make([]string, len(b.where))
		for i, w := range b.where {
			if err := ValidateIdentifier(w.Column); err != nil {
				return Query{}, fmt.Errorf("where column: %w", err)
			}
			if w.IsNull() {
				preds[i] = quote(w.Column) + " IS NULL"
				continue
			}
			preds[i] = quote(w.Column) + " = " + next(w)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(preds, " AND "))
	}

	if len(b.orderBy) > 0 && b.kind == selectKind {
		cols, err := quoteAll(b.orderBy)
		if err != nil {
			return Query{}, err
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(cols, ", "))
	}

	return Query{text: sb.String(), args: args}, nil
}

// MustQuery is like Query but panics on invalid identifiers. It suits
// package-level statements built from constant names.
func (b *Builder) MustQuery() Query {
	q, err := b.Query()
	if err != nil {
		panic(err)
	}
	return q
}

// ValidateIdentifier checks that name is usable as a table or column name.
func ValidateIdentifier(name string) error {
	if name == "" {
		return ErrEmptyIdentifier
	}
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrIdentifierTooLong, len(name), MaxIdentifierLength)
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return fmt.Errorf("%w: %q must start with letter or underscore", ErrInvalidCharacter, name)
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return fmt.Errorf("%w: '%c' at position %d of %q", ErrInvalidCharacter, r, i, name)
		}
	}
	return nil
}

func quote(name string) string { return `"` + name + `"` }

func quoteAll(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		if err := ValidateIdentifier(n); err != nil {
			return nil, fmt.Errorf("column: %w", err)
		}
		out[i] = quote(n)
	}
	return out, nil
}
