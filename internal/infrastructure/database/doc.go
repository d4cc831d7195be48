// Package database provides SQLite connectivity for the camera server.
//
// The only persistent state is the frame fault journal; the camera
// registry itself lives in memory. This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations loaded from an embedded filesystem
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or have
// DEFAULT values, and each .up.sql should ship with a .down.sql.
package database
