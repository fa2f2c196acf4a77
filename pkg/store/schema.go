package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 2

// CreateSchema creates the database schema if it doesn't exist.
func CreateSchema(db *sql.DB) error {
	if err := createSchemaVersionTable(db); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"signatures", `
			CREATE TABLE IF NOT EXISTS signatures (
				id TEXT PRIMARY KEY NOT NULL,
				name TEXT NOT NULL,
				expression TEXT NOT NULL,
				structural_id TEXT NOT NULL,
				severity TEXT
			)`},
		{"targets", `
			CREATE TABLE IF NOT EXISTS targets (
				digest TEXT PRIMARY KEY NOT NULL,
				size INTEGER NOT NULL
			)`},
		{"provenance", `
			CREATE TABLE IF NOT EXISTS provenance (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				digest TEXT NOT NULL REFERENCES targets(digest),
				type TEXT NOT NULL,
				path TEXT NOT NULL,
				pid INTEGER NOT NULL DEFAULT 0,
				UNIQUE(digest, type, path, pid)
			)`},
		{"verdicts", `
			CREATE TABLE IF NOT EXISTS verdicts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				target TEXT NOT NULL,
				provenance_type TEXT,
				provenance_path TEXT,
				digest TEXT,
				size INTEGER NOT NULL,
				outcome TEXT NOT NULL,
				bytes_scanned INTEGER NOT NULL,
				error TEXT,
				scanned_at TEXT NOT NULL
			)`},
		{"detections", `
			CREATE TABLE IF NOT EXISTS detections (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				verdict_id INTEGER NOT NULL REFERENCES verdicts(id),
				reason TEXT NOT NULL,
				signature_id TEXT,
				signature_name TEXT,
				severity TEXT,
				patterns_json TEXT,
				offsets_json TEXT
			)`},
	}

	for _, t := range tables {
		if _, err := db.Exec(t.ddl); err != nil {
			return fmt.Errorf("creating %s table: %w", t.name, err)
		}
	}

	// Index for efficient lookups by digest and verdict
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_provenance_digest ON provenance(digest)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_digest ON verdicts(digest)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_verdict ON detections(verdict_id)`,
	}
	for _, ddl := range indexes {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}

	return nil
}

func createSchemaVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Insert version if table is empty
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	var version int
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return err
	}
	if version != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", version, SchemaVersion)
	}
	return nil
}
