package store

import (
	"database/sql"
	"fmt"
	"os"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	SignaturesMerged int
	TargetsMerged    int
	ProvenanceMerged int
	VerdictsMerged   int
	DetectionsMerged int
	SourcesProcessed int
}

// Merge combines multiple fdsec databases into one, e.g. results collected
// on several hosts. Signatures, targets and provenance are deduplicated via
// INSERT OR IGNORE; verdicts are appended with their detections.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	dest, err := NewSQLite(cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer dest.Close()

	stats := &MergeStats{}

	for _, sourcePath := range cfg.SourcePaths {
		if _, err := os.Stat(sourcePath); err != nil {
			return stats, fmt.Errorf("source database: %w", err)
		}
		sourceStats, err := mergeFrom(dest.db, sourcePath)
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.SignaturesMerged += sourceStats.SignaturesMerged
		stats.TargetsMerged += sourceStats.TargetsMerged
		stats.ProvenanceMerged += sourceStats.ProvenanceMerged
		stats.VerdictsMerged += sourceStats.VerdictsMerged
		stats.DetectionsMerged += sourceStats.DetectionsMerged
		stats.SourcesProcessed++
	}

	return stats, nil
}

// mergeFrom copies data from a source database to the destination.
func mergeFrom(destDB *sql.DB, sourcePath string) (*MergeStats, error) {
	source, err := NewSQLite(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source database: %w", err)
	}
	defer source.Close()
	sourceDB := source.db

	stats := &MergeStats{}

	// Start transaction for efficiency
	tx, err := destDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	copies := []struct {
		name   string
		query  string
		insert string
		cols   int
		count  *int
	}{
		{
			"signatures",
			"SELECT id, name, expression, structural_id, severity FROM signatures",
			"INSERT OR IGNORE INTO signatures (id, name, expression, structural_id, severity) VALUES (?, ?, ?, ?, ?)",
			5, &stats.SignaturesMerged,
		},
		{
			"targets",
			"SELECT digest, size FROM targets",
			"INSERT OR IGNORE INTO targets (digest, size) VALUES (?, ?)",
			2, &stats.TargetsMerged,
		},
		{
			"provenance",
			"SELECT digest, type, path, pid FROM provenance",
			"INSERT OR IGNORE INTO provenance (digest, type, path, pid) VALUES (?, ?, ?, ?)",
			4, &stats.ProvenanceMerged,
		},
	}
	for _, c := range copies {
		n, err := copyRows(tx, sourceDB, c.query, c.insert, c.cols)
		if err != nil {
			return nil, fmt.Errorf("merging %s: %w", c.name, err)
		}
		*c.count = n
	}

	if err := mergeVerdicts(tx, sourceDB, stats); err != nil {
		return nil, fmt.Errorf("merging verdicts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return stats, nil
}

// copyRows copies every row of query into insert and returns the number of
// rows actually inserted.
func copyRows(tx *sql.Tx, sourceDB *sql.DB, query, insert string, cols int) (int, error) {
	rows, err := sourceDB.Query(query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	stmt, err := tx.Prepare(insert)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	values := make([]any, cols)
	ptrs := make([]any, cols)
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		affected, _ := result.RowsAffected()
		if affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}

// mergeVerdicts appends source verdicts, remapping detection verdict IDs.
func mergeVerdicts(tx *sql.Tx, sourceDB *sql.DB, stats *MergeStats) error {
	ids := make(map[int64]int64)

	rows, err := sourceDB.Query(`
		SELECT id, target, provenance_type, provenance_path, digest, size, outcome, bytes_scanned, error, scanned_at
		FROM verdicts ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		values := make([]any, 9)
		ptrs := []any{&id}
		for i := range values {
			ptrs = append(ptrs, &values[i])
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		res, err := tx.Exec(`
			INSERT INTO verdicts (target, provenance_type, provenance_path, digest, size, outcome, bytes_scanned, error, scanned_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, values...)
		if err != nil {
			return err
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		ids[id] = newID
		stats.VerdictsMerged++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	drows, err := sourceDB.Query(`
		SELECT verdict_id, reason, signature_id, signature_name, severity, patterns_json, offsets_json
		FROM detections ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer drows.Close()

	for drows.Next() {
		var verdictID int64
		values := make([]any, 6)
		ptrs := []any{&verdictID}
		for i := range values {
			ptrs = append(ptrs, &values[i])
		}
		if err := drows.Scan(ptrs...); err != nil {
			return err
		}
		newID, ok := ids[verdictID]
		if !ok {
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO detections (verdict_id, reason, signature_id, signature_name, severity, patterns_json, offsets_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, append([]any{newID}, values...)...)
		if err != nil {
			return err
		}
		stats.DetectionsMerged++
	}
	return drows.Err()
}
