// Package migration applies versioned SQL migrations to SQLite databases.
//
// Migration files are named {version}_{description}.sql (for example
// "001_initial_schema.sql") and are read from any fs.FS, typically an embedded
// directory. An optional "-- Description:" comment header overrides the
// description derived from the file name.
//
// Applied versions are tracked in a schema_migrations table together with the
// file checksum; every migration runs in its own transaction and is recorded in
// that same transaction.
//
//	manager := migration.NewMigrationManager(migration.NewFileScanner(), migration.NewSQLiteExecutor(db), files, "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
