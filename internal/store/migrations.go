package store

import (
	"database/sql"
	"fmt"

	"threadlens/internal/logging"
)

// Migration adds a column to an existing table. CREATE TABLE IF NOT EXISTS
// covers fresh databases; these cover databases created before the column
// was introduced.
type Migration struct {
	Table  string
	Column string
	Def    string
}

var pendingMigrations = []Migration{
	// Cost accounting split out of the report blob for listing queries.
	{"reports", "tokens_used", "INTEGER NOT NULL DEFAULT 0"},
	{"reports", "cost_usd", "REAL NOT NULL DEFAULT 0"},
	// Prompt version tracking (added when versioned prompts landed).
	{"sentiment_classifications", "prompt_version", "TEXT"},
	{"hostility_classifications", "prompt_version", "TEXT"},
	// Free-text rationale for hostility verdicts.
	{"hostility_classifications", "rationale", "TEXT"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	logging.StoreDebug("Running schema migrations (%d pending)", len(pendingMigrations))

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}
	if applied > 0 {
		logging.Store("Schema migrations complete: applied=%d", applied)
	}
	return nil
}

func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	return err == nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
