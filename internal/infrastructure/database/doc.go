// Package database provides SQLite connectivity for Gray Logic Remote.
//
// The database holds the control-action audit trail. It is opened with
// WAL mode and a busy timeout, and its schema is managed by additive
// migrations embedded from the top-level migrations package.
//
// Usage:
//
//	db, err := database.Open(database.FromConfig(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. New columns must be NULLABLE or have a DEFAULT.
package database
