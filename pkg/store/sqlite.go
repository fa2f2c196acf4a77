package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store.
// Use ":memory:" for in-memory database (useful for testing).
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: writers never contend and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	// Initialize schema
	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AddSignature stores a signature record.
func (s *SQLiteStore) AddSignature(sig *types.Signature) error {
	structuralID := sig.StructuralID
	if structuralID == "" {
		structuralID = sig.ComputeStructuralID()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO signatures (id, name, expression, structural_id, severity)
		VALUES (?, ?, ?, ?, ?)
	`, sig.ID, sig.DisplayName(), sig.Expression, structuralID, sig.Severity)
	if err != nil {
		return fmt.Errorf("inserting signature: %w", err)
	}
	return nil
}

// AddTarget records a fully scanned target by digest.
func (s *SQLiteStore) AddTarget(d types.Digest, size int64) error {
	return addTarget(s.db, d, size)
}

// AddProvenance associates provenance with a target digest.
func (s *SQLiteStore) AddProvenance(d types.Digest, prov types.Provenance) error {
	return addProvenance(s.db, d, prov)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func addTarget(db execer, d types.Digest, size int64) error {
	_, err := db.Exec("INSERT OR IGNORE INTO targets (digest, size) VALUES (?, ?)", d.Hex(), size)
	if err != nil {
		return fmt.Errorf("inserting target: %w", err)
	}
	return nil
}

func addProvenance(db execer, d types.Digest, prov types.Provenance) error {
	if prov == nil {
		return nil
	}
	var pid int
	if p, ok := prov.(types.ProcessProvenance); ok {
		pid = p.PID
	}

	_, err := db.Exec(`
		INSERT OR IGNORE INTO provenance (digest, type, path, pid)
		VALUES (?, ?, ?, ?)
	`, d.Hex(), prov.Kind(), prov.Path(), pid)
	if err != nil {
		return fmt.Errorf("inserting provenance: %w", err)
	}
	return nil
}

// AddVerdict stores a verdict and its detections in one transaction.
func (s *SQLiteStore) AddVerdict(v *types.Verdict) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var provType, provPath, digest, errMsg *string
	if v.Provenance != nil {
		k, p := v.Provenance.Kind(), v.Provenance.Path()
		provType, provPath = &k, &p
	}
	if !v.Digest.IsZero() {
		h := v.Digest.Hex()
		digest = &h
	}
	if v.Err != nil {
		m := v.Err.Error()
		errMsg = &m
	}

	res, err := tx.Exec(`
		INSERT INTO verdicts (target, provenance_type, provenance_path, digest, size, outcome, bytes_scanned, error, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		v.Target,
		provType,
		provPath,
		digest,
		v.Size,
		v.Outcome.String(),
		v.BytesScanned,
		errMsg,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting verdict: %w", err)
	}
	verdictID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading verdict id: %w", err)
	}

	for _, det := range v.Detections {
		patternsJSON, err := json.Marshal(det.Patterns)
		if err != nil {
			return fmt.Errorf("marshaling patterns: %w", err)
		}
		offsetsJSON, err := json.Marshal(det.Offsets)
		if err != nil {
			return fmt.Errorf("marshaling offsets: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO detections (verdict_id, reason, signature_id, signature_name, severity, patterns_json, offsets_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, verdictID, string(det.Reason), det.SignatureID, det.SignatureName, det.Severity, string(patternsJSON), string(offsetsJSON))
		if err != nil {
			return fmt.Errorf("inserting detection: %w", err)
		}
	}

	if conclusive(v) {
		if err := addTarget(tx, v.Digest, v.Size); err != nil {
			return err
		}
		if err := addProvenance(tx, v.Digest, v.Provenance); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetVerdicts retrieves all verdicts in insertion order.
func (s *SQLiteStore) GetVerdicts() ([]*types.Verdict, error) {
	rows, err := s.db.Query(`
		SELECT id, target, provenance_type, provenance_path, digest, size, outcome, bytes_scanned, error
		FROM verdicts
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []*types.Verdict
	byID := make(map[int64]*types.Verdict)
	for rows.Next() {
		var v types.Verdict
		var id int64
		var provType, provPath, digest, errMsg sql.NullString
		var outcome string

		err := rows.Scan(&id, &v.Target, &provType, &provPath, &digest, &v.Size, &outcome, &v.BytesScanned, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("scanning verdict: %w", err)
		}

		if v.Outcome, err = types.ParseOutcome(outcome); err != nil {
			return nil, err
		}
		if digest.Valid {
			if v.Digest, err = types.ParseDigest(digest.String); err != nil {
				return nil, fmt.Errorf("parsing digest: %w", err)
			}
		}
		if provType.Valid {
			v.Provenance = RecordedProvenance{Type: provType.String, Location: provPath.String}
		}
		if errMsg.Valid {
			v.Err = errors.New(errMsg.String)
		}

		verdicts = append(verdicts, &v)
		byID[id] = &v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating verdicts: %w", err)
	}
	// Release the connection before querying detections.
	rows.Close()

	dets, err := s.queryDetections()
	if err != nil {
		return nil, err
	}
	for _, d := range dets {
		if v := byID[d.verdictID]; v != nil {
			v.Detections = append(v.Detections, d.Detection)
		}
	}

	return verdicts, nil
}

// GetDetections retrieves every detection with its target.
func (s *SQLiteStore) GetDetections() ([]*DetectionRecord, error) {
	verdicts, err := s.GetVerdicts()
	if err != nil {
		return nil, err
	}
	return detectionsOf(verdicts), nil
}

type storedDetection struct {
	verdictID int64
	types.Detection
}

func (s *SQLiteStore) queryDetections() ([]storedDetection, error) {
	rows, err := s.db.Query(`
		SELECT verdict_id, reason, signature_id, signature_name, severity, patterns_json, offsets_json
		FROM detections
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying detections: %w", err)
	}
	defer rows.Close()

	var out []storedDetection
	for rows.Next() {
		var d storedDetection
		var reason string
		var sigID, sigName, severity, patternsJSON, offsetsJSON sql.NullString

		if err := rows.Scan(&d.verdictID, &reason, &sigID, &sigName, &severity, &patternsJSON, &offsetsJSON); err != nil {
			return nil, fmt.Errorf("scanning detection: %w", err)
		}
		d.Reason = types.Reason(reason)
		d.SignatureID = sigID.String
		d.SignatureName = sigName.String
		d.Severity = severity.String
		if patternsJSON.Valid {
			if err := json.Unmarshal([]byte(patternsJSON.String), &d.Patterns); err != nil {
				return nil, fmt.Errorf("unmarshaling patterns: %w", err)
			}
		}
		if offsetsJSON.Valid {
			if err := json.Unmarshal([]byte(offsetsJSON.String), &d.Offsets); err != nil {
				return nil, fmt.Errorf("unmarshaling offsets: %w", err)
			}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating detections: %w", err)
	}
	return out, nil
}

// TargetExists checks if a target with this digest was already scanned.
func (s *SQLiteStore) TargetExists(d types.Digest) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM targets WHERE digest = ?", d.Hex()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking target existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func detectionsOf(verdicts []*types.Verdict) []*DetectionRecord {
	var out []*DetectionRecord
	for _, v := range verdicts {
		for _, d := range v.Detections {
			out = append(out, &DetectionRecord{Target: v.Target, Digest: v.Digest, Detection: d})
		}
	}
	return out
}
