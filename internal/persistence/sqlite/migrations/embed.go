// Package migrations embeds the application schema, one directory per version.
package migrations

import "embed"

// FS holds the version directories at its root.
//
//go:embed 1.0.0/*.sql 1.1.0/*.sql 1.2.0/*.sql
var FS embed.FS

// Latest is the newest schema version shipped in FS.
const Latest = "1.2.0"
