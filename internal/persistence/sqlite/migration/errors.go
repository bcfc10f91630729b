package migration

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies migration failures.
type Kind int

const (
	// KindConfiguration marks malformed or missing configuration, including a
	// malformed version string read from storage.
	KindConfiguration Kind = iota + 1
	// KindAhead marks a database whose stored version is newer than the application.
	KindAhead
	// KindUnreadableVersion marks a missing or unreadable version record.
	KindUnreadableVersion
	// KindIO marks failures reading scripts or writing backups.
	KindIO
	// KindSQL marks failures executing statements.
	KindSQL
	// KindPrepare marks failures preparing or binding a statement.
	KindPrepare
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrAhead              = errors.New("database is ahead of application")
	ErrUnreadableVersion  = errors.New("database version unreadable")
	ErrIO                 = errors.New("migration i/o error")
	ErrSQL                = errors.New("sql execution error")
	ErrPrepare            = errors.New("statement preparation error")
	errUnknownKindMessage = errors.New("unknown migration error")
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAhead:
		return "ahead"
	case KindUnreadableVersion:
		return "unreadable-version"
	case KindIO:
		return "io"
	case KindSQL:
		return "sql"
	case KindPrepare:
		return "prepare"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindAhead:
		return ErrAhead
	case KindUnreadableVersion:
		return ErrUnreadableVersion
	case KindIO:
		return ErrIO
	case KindSQL:
		return ErrSQL
	case KindPrepare:
		return ErrPrepare
	default:
		return errUnknownKindMessage
	}
}

// Error is the single error type surfaced by the migration engine.
type Error struct {
	Kind    Kind
	Context string // what was being done
	Version string // version being applied, if any
	Script  string // script resource name, if any
	Err     error  // underlying cause, may be nil
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.sentinel().Error())
	if e.Version != "" || e.Script != "" {
		b.WriteString(" (")
		switch {
		case e.Version != "" && e.Script != "":
			fmt.Fprintf(&b, "version %s, script %s", e.Version, e.Script)
		case e.Version != "":
			fmt.Fprintf(&b, "version %s", e.Version)
		default:
			fmt.Fprintf(&b, "script %s", e.Script)
		}
		b.WriteString(")")
	}
	if e.Context != "" {
		b.WriteString(": ")
		b.WriteString(e.Context)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind, true
	}
	return 0, false
}

func newError(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

// annotate fills the version and script of a migration error without
// overriding values set closer to the failure.
func annotate(err error, ver, script string) error {
	var me *Error
	if !errors.As(err, &me) {
		return &Error{Kind: KindSQL, Version: ver, Script: script, Err: err}
	}
	if me.Version == "" {
		me.Version = ver
	}
	if me.Script == "" {
		me.Script = script
	}
	return err
}
