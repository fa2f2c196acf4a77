// Package store persists scan results: the signatures used, the targets
// seen, and the verdicts produced for them.
package store

import (
	"fmt"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

// Store provides persistence for scan results.
// This interface abstracts the underlying storage implementation,
// allowing for different backends (SQLite, memory).
type Store interface {
	// AddSignature stores a signature record.
	AddSignature(s *types.Signature) error

	// AddTarget records a fully scanned target by digest.
	AddTarget(d types.Digest, size int64) error

	// AddProvenance associates provenance with a target digest.
	AddProvenance(d types.Digest, prov types.Provenance) error

	// AddVerdict stores a verdict and its detections. Conclusive verdicts
	// with a digest also record the target and its provenance.
	AddVerdict(v *types.Verdict) error

	// GetVerdicts retrieves all verdicts in insertion order.
	GetVerdicts() ([]*types.Verdict, error)

	// GetDetections retrieves every detection with its target.
	GetDetections() ([]*DetectionRecord, error)

	// TargetExists checks if a target with this digest was already scanned
	// to a conclusive verdict.
	TargetExists(d types.Digest) (bool, error)

	// Close closes the database connection.
	Close() error
}

// DetectionRecord is a stored detection joined with its verdict.
type DetectionRecord struct {
	Target string
	Digest types.Digest
	types.Detection
}

// RecordedProvenance is provenance read back from a store. Only the kind
// and display path survive storage.
type RecordedProvenance struct {
	Type     string
	Location string
}

// Kind returns the recorded provenance kind.
func (p RecordedProvenance) Kind() string { return p.Type }

// Path returns the recorded display path.
func (p RecordedProvenance) Path() string { return p.Location }

// Config for store initialization.
type Config struct {
	// Path is the database file path.
	// Use ":memory:" for an in-memory store (useful for testing).
	Path string
}

// MemoryPath selects MemoryStore.
const MemoryPath = ":memory:"

// New creates a new Store: MemoryStore for ":memory:", SQLite otherwise.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Path == MemoryPath {
		return NewMemory(), nil
	}
	return NewSQLite(cfg.Path)
}

// conclusive reports whether a verdict marks its target as scanned.
func conclusive(v *types.Verdict) bool {
	return v.Outcome != types.OutcomeInconclusive && !v.Digest.IsZero()
}
