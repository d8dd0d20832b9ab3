package localstate

import (
	"database/sql"
)

// EnsureSQLiteSchema creates the key-value table if it does not exist.
func EnsureSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS KeyValues (
            Key TEXT PRIMARY KEY,
            Value TEXT NOT NULL,
            UpdateTime TIMESTAMP NOT NULL
        );`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
