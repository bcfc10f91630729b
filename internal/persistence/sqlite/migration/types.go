package migration

import (
	"context"
	"io"
	"strings"

	"github.com/example/hostocars/internal/version"
)

// State is a step of the startup state machine.
type State int

const (
	StateUninitialized State = iota
	StateUpToDate
	StateStale
	StateAhead
	StateMigrating
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateUpToDate:
		return "up-to-date"
	case StateStale:
		return "stale"
	case StateAhead:
		return "ahead"
	case StateMigrating:
		return "migrating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Script is a single SQL resource belonging to one version.
type Script struct {
	Version version.Version
	Name    string
	open    func() (io.ReadCloser, error)
}

// NewScript returns a script whose content is produced by open.
func NewScript(v version.Version, name string, open func() (io.ReadCloser, error)) Script {
	return Script{Version: v, Name: name, open: open}
}

// TextScript returns a script backed by an in-memory string.
func TextScript(v version.Version, name, text string) Script {
	return NewScript(v, name, func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(text)), nil
	})
}

// Open returns a reader over the script content.
func (s Script) Open() (io.ReadCloser, error) {
	if s.open == nil {
		return nil, newError(KindIO, "script has no content source", nil)
	}
	return s.open()
}

// VersionScripts groups the ordered scripts of one version.
type VersionScripts struct {
	Version version.Version
	Scripts []Script
}

// Extractor locates migration scripts.
type Extractor interface {
	// Extract returns the scripts of every version in [from, to], grouped by
	// version in ascending order, each group ordered by resource name.
	Extract(ctx context.Context, from, to version.Version) ([]VersionScripts, error)
}

// BackupManager copies the database file before risky operations.
type BackupManager interface {
	// Backup copies the database. preMigration is true right before schema
	// changes are applied and false for the routine startup copy.
	Backup(ctx context.Context, preMigration bool) error
}

// Plan describes what startup would do, without doing it.
type Plan struct {
	State   State
	Existed bool
	Stored  version.Version // zero unless Existed
	Target  version.Version
	Pending []version.Version
}
