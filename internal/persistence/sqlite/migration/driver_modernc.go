//go:build !mattn

package migration

import (
	_ "modernc.org/sqlite" // SQLite driver
)

// DriverName is the database/sql driver used for every connection.
const DriverName = "sqlite"

func defaultDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
