// Package database provides SQLite database connectivity for the
// action core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations (additive-only)
//   - Connection pooling and lifecycle management
//   - Foreign-key enforcement (tables are not declared STRICT)
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//   - Sensitive data (passwords, tokens) should be encrypted at rest
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//   - Connection pooling reduces overhead
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	// Run migrations
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migrations are additive-only to support safe rollbacks:
//   - New columns must be NULLABLE or have DEFAULT values
//   - Never DROP or RENAME columns
//   - Migration filenames follow YYYYMMDD_HHMMSS_description.{up,down}.sql
package database
