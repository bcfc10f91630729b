//go:build mattn

package migration

import (
	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver
)

// DriverName is the database/sql driver used for every connection.
const DriverName = "sqlite3"

func defaultDSN(path string) string {
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}
