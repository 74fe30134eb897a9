// Package database provides SQLite connection management and schema
// migrations for Hearth Cloud.
//
// It wraps database/sql with WAL-mode pragmas tuned for a single-writer
// embedded database and applies embedded SQL migrations on startup. The
// migrations package registers its embed.FS via the MigrationsFS variable
// during init.
package database
