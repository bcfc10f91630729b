// Package query assembles parameterized SQL statements without touching a database.
//
// A Query pairs SQL text using SQLite numbered placeholders (?1, ?2, ...) with
// the ordered list of typed arguments bound to them. Queries are immutable
// values; the Builder is the usual way to produce one.
package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrArgumentCount is returned when the number of arguments differs from the
// number of placeholders in the SQL text.
var ErrArgumentCount = errors.New("argument count does not match placeholders")

// Query is an immutable SQL text with its ordered arguments.
type Query struct {
	text string
	args []Argument
}

// New returns a Query for hand-written SQL text.
func New(text string, args ...Argument) Query {
	return Query{text: text, args: append([]Argument(nil), args...)}
}

// SQL returns the statement text.
func (q Query) SQL() string { return q.text }

// Args returns a copy of the ordered arguments.
func (q Query) Args() []Argument { return append([]Argument(nil), q.args...) }

// Len returns the number of arguments.
func (q Query) Len() int { return len(q.args) }

func (q Query) String() string {
	return fmt.Sprintf("%s %v", q.text, q.args)
}

// Validate checks that every argument has a declared type and that the
// argument count matches the placeholders found in the text.
func (q Query) Validate() error {
	for i, arg := range q.args {
		if !arg.Type.Valid() {
			return fmt.Errorf("%w: argument %d (%s)", ErrTypeMismatch, i+1, arg.Column)
		}
	}
	if n := Placeholders(q.text); n != len(q.args) {
		return fmt.Errorf("%w: %d placeholders, %d arguments", ErrArgumentCount, n, len(q.args))
	}
	return nil
}

// BindValues converts every argument in order. Element i is bound at
// parameter index i+1.
func (q Query) BindValues() ([]any, error) {
	values := make([]any, len(q.args))
	for i, arg := range q.args {
		v, err := arg.BindValue()
		if err != nil {
			return nil, fmt.Errorf("bind argument %d: %w", i+1, err)
		}
		values[i] = v
	}
	return values, nil
}

// Placeholders returns the number of parameters text declares, numbering them
// as SQLite does: "?N" uses index N and an anonymous "?" takes one more than
// the largest index seen before it. Quoted literals, identifiers and "--" or
// "/* */" comments are skipped.
func Placeholders(text string) int {
	highest := 0
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '\'', '"', '`':
			i = skipQuoted(text, i, c)
		case '[':
			i = skipQuoted(text, i, ']')
		case '-':
			if i+1 < len(text) && text[i+1] == '-' {
				for i < len(text) && text[i] != '\n' {
					i++
				}
			}
		case '/':
			if i+1 < len(text) && text[i+1] == '*' {
				if end := strings.Index(text[i+2:], "*/"); end >= 0 {
					i += end + 3
				} else {
					i = len(text)
				}
			}
		case '?':
			j := i + 1
			n := 0
			for j < len(text) && text[j] >= '0' && text[j] <= '9' {
				n = n*10 + int(text[j]-'0')
				j++
			}
			if j == i+1 {
				highest++
			} else if n > highest {
				highest = n
			}
			i = j - 1
		}
	}
	return highest
}

func skipQuoted(text string, start int, closer byte) int {
	for i := start + 1; i < len(text); i++ {
		if text[i] == closer {
			if closer != ']' && i+1 < len(text) && text[i+1] == closer {
				i++
				continue
			}
			return i
		}
	}
	return len(text)
}
