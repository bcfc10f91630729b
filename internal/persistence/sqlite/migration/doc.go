// Package migration brings an embedded SQLite database to the application's
// version at startup and owns the connection the rest of the application uses.
//
// The stored schema version lives in the DatabaseInfo table under the
// "version" key. On startup the engine:
//
//   - initializes a database file that does not exist yet, applying every
//     version from 0.0.0 up to the project version;
//   - takes a routine backup of a database already at the project version;
//   - takes a pre-migration backup of an older database and applies every
//     version after the stored one, in ascending order;
//   - refuses to start on a database newer than the project version or one
//     whose version cannot be read.
//
// Migration scripts are grouped by version directory (see FSExtractor). Each
// statement of a script commits on its own private connection, so a crash
// mid-script leaves the statements before it applied and the rest untouched.
// Scripts are responsible for updating the stored version themselves.
//
// Example usage:
//
//	engine, err := migration.NewEngine(cfg, migration.NewFSExtractor(migrations.FS, "."), backup, logger)
//	if err != nil {
//		return err
//	}
//	if err := engine.Start(ctx); err != nil {
//		return err
//	}
//	defer engine.Close()
package migration
