package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/example/hostocars/internal/query"
)

// column declares how a struct field is stored.
type column struct {
	name     string
	typ      query.Type
	nullable bool
}

// table is the explicit column layout of one entity. The column order is the
// scan order of every SELECT built from it.
type table struct {
	name    string
	columns []column
}

func (t table) names() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.name
	}
	return out
}

// arguments pairs values, in column order, with their declared column types,
// skipping the columns listed in omit. A nil value of a non-nullable column is
// rejected.
func (t table) arguments(values []any, omit ...string) ([]query.Argument, error) {
	if len(values) != len(t.columns) {
		return nil, fmt.Errorf("%s: %d values for %d columns", t.name, len(values), len(t.columns))
	}
	args := make([]query.Argument, 0, len(values))
next:
	for i, c := range t.columns {
		for _, o := range omit {
			if o == c.name {
				continue next
			}
		}
		if values[i] == nil && !c.nullable {
			return nil, fmt.Errorf("%s.%s: null value for a required column", t.name, c.name)
		}
		args = append(args, query.Argument{Column: c.name, Value: values[i], Type: c.typ})
	}
	return args, nil
}

func (t table) selectAll() *query.Builder {
	return query.Select(t.name, t.names(), false)
}

var carTable = table{
	name: "cars",
	columns: []column{
		{name: "id", typ: query.Integer},
		{name: "registration", typ: query.Text},
		{name: "brand", typ: query.Text},
		{name: "model", typ: query.Text},
		{name: "motorization", typ: query.Text, nullable: true},
		{name: "engineCode", typ: query.Text, nullable: true},
		{name: "vin", typ: query.Text, nullable: true},
		{name: "releaseDate", typ: query.Date, nullable: true},
		{name: "certificate", typ: query.Blob, nullable: true},
		{name: "comments", typ: query.Text, nullable: true},
	},
}

var interventionTable = table{
	name: "interventions",
	columns: []column{
		{name: "id", typ: query.Integer},
		{name: "carId", typ: query.Integer},
		{name: "year", typ: query.Integer, nullable: true},
		{name: "number", typ: query.Integer, nullable: true},
		{name: "status", typ: query.Text},
		{name: "date", typ: query.Date, nullable: true},
		{name: "description", typ: query.Text, nullable: true},
		{name: "mileage", typ: query.Integer, nullable: true},
		{name: "amount", typ: query.Integer, nullable: true},
		{name: "paidAmount", typ: query.Integer, nullable: true},
		{name: "comments", typ: query.Text, nullable: true},
	},
}

var operationTable = table{
	name: "operations",
	columns: []column{
		{name: "id", typ: query.Integer},
		{name: "interventionId", typ: query.Integer},
		{name: "label", typ: query.Text},
		{name: "done", typ: query.Integer},
	},
}

// Nullable field helpers. A nil pointer becomes an untyped nil so the
// argument binds NULL.

func textOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func intOrNil(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func dateOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func bytesOrNil(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

func textPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	n := ni.Int64
	return &n
}

func datePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(query.DateLayout, ns.String)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", ns.String, err)
	}
	return &t, nil
}
