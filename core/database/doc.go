// Package database handles database connections, migrations and schema inspection.
//
// It wraps GORM to open MySQL (production) or SQLite (tests, local development) connections
// based on the application's configuration.
//
// # Schema Inspection
//
// GetTableColumns and VerifyColumns back the `migrate --check` command, which confirms that
// every durable-store table carries the columns the gorm models expect.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.VerifyColumns(db, "game_sessions", []string{"id", "version"})
package database
