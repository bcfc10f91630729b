package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/hostocars/internal/version"
)

// Config holds the settings the engine needs before any connection opens.
type Config struct {
	// Location is the directory holding the database file. It is created if missing.
	Location string

	// Path is the database file. Its existence decides whether the database
	// must be initialized.
	Path string

	// URL is the driver data source name. Derived from Path when empty.
	URL string

	// ProjectVersion is the version of the running application.
	ProjectVersion string
}

// Validate checks required values and parses the project version.
func (c Config) Validate() (version.Version, error) {
	var missing []string
	if strings.TrimSpace(c.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(c.Path) == "" {
		missing = append(missing, "path")
	}
	if strings.TrimSpace(c.ProjectVersion) == "" {
		missing = append(missing, "project version")
	}
	if len(missing) > 0 {
		return version.Version{}, newError(KindConfiguration,
			"missing required value: "+strings.Join(missing, ", "), nil)
	}
	project, err := version.Parse(c.ProjectVersion)
	if err != nil {
		return version.Version{}, newError(KindConfiguration, "project version", err)
	}
	return project, nil
}

// DataSourceName returns URL, or the driver default for Path.
func (c Config) DataSourceName() string {
	if u := strings.TrimSpace(c.URL); u != "" {
		return u
	}
	return defaultDSN(filepath.Clean(c.Path))
}

// ensureLocation creates the database directory if it doesn't exist.
func (c Config) ensureLocation() error {
	info, err := os.Stat(c.Location)
	if err == nil {
		if !info.IsDir() {
			return newError(KindConfiguration, fmt.Sprintf("database location %s is not a directory", c.Location), nil)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return newError(KindIO, "stat database location", err)
	}
	if err := os.MkdirAll(c.Location, 0o755); err != nil {
		return newError(KindIO, "create database location", err)
	}
	return nil
}

// databaseExists reports whether the database file is already present.
func (c Config) databaseExists() (bool, error) {
	info, err := os.Stat(c.Path)
	switch {
	case err == nil:
		if info.IsDir() {
			return false, newError(KindConfiguration, fmt.Sprintf("database path %s is a directory", c.Path), nil)
		}
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, newError(KindIO, "stat database file", err)
	}
}
