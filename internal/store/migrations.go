package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "kv: namespaced key-value records (cooldowns, tallies, visits)",
		SQL: `
CREATE TABLE kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "actions: candidate actions reported by surfaces",
		SQL: `
CREATE TABLE actions (
    id           INTEGER PRIMARY KEY,
    candidate_id TEXT NOT NULL,
    rule_id      TEXT NOT NULL,
    action_id    TEXT NOT NULL,
    payload      TEXT,
    created_at   INTEGER NOT NULL
);

CREATE INDEX idx_actions_candidate ON actions(candidate_id);
CREATE INDEX idx_actions_created   ON actions(created_at DESC);
`,
	},
}

// migrate applies every migration newer than the recorded schema version,
// each in its own transaction.
func (db *DB) migrate() error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	current, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := db.apply(m); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) apply(m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_versions (version, description) VALUES (?, ?)", m.Version, m.Description); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration, or 0 on a fresh database.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
