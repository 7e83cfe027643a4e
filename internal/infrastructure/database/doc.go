// Package database provides SQLite connectivity for Gray Logic Occupancy.
//
// This package manages:
//   - Database connection with WAL mode so snapshot reads do not block
//     the poll loop or the ingest server
//   - Schema migrations embedded in the binary
//   - Connection pool limits (one writer, as SQLite requires)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or carry a
// DEFAULT, and nothing is dropped or renamed.
package database
