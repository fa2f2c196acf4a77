package store

import (
	"fmt"
	"sync"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu         sync.RWMutex
	signatures map[string]*types.Signature     // keyed by signature ID
	targets    map[types.Digest]int64          // digest -> size
	provenance map[types.Digest][]types.Provenance
	verdicts   []*types.Verdict
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		signatures: make(map[string]*types.Signature),
		targets:    make(map[types.Digest]int64),
		provenance: make(map[types.Digest][]types.Provenance),
	}
}

// AddSignature stores a signature record, replacing one with the same ID.
func (m *MemoryStore) AddSignature(s *types.Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.signatures[s.ID] = s
	return nil
}

// Signatures returns the number of stored signatures.
func (m *MemoryStore) Signatures() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.signatures)
}

// AddTarget records a fully scanned target. Idempotent.
func (m *MemoryStore) AddTarget(d types.Digest, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addTarget(d, size)
	return nil
}

func (m *MemoryStore) addTarget(d types.Digest, size int64) {
	if _, exists := m.targets[d]; !exists {
		m.targets[d] = size
	}
}

// AddProvenance associates provenance with a target digest.
func (m *MemoryStore) AddProvenance(d types.Digest, prov types.Provenance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addProvenance(d, prov)
	return nil
}

func (m *MemoryStore) addProvenance(d types.Digest, prov types.Provenance) {
	if prov == nil {
		return
	}
	key := provenanceKey(prov)
	for _, p := range m.provenance[d] {
		if provenanceKey(p) == key {
			return
		}
	}
	m.provenance[d] = append(m.provenance[d], prov)
}

// GetProvenance returns every provenance recorded for d.
func (m *MemoryStore) GetProvenance(d types.Digest) []types.Provenance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]types.Provenance, len(m.provenance[d]))
	copy(result, m.provenance[d])
	return result
}

// AddVerdict stores a copy of v.
func (m *MemoryStore) AddVerdict(v *types.Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *v
	cp.Detections = append([]types.Detection(nil), v.Detections...)
	m.verdicts = append(m.verdicts, &cp)

	if conclusive(v) {
		m.addTarget(v.Digest, v.Size)
		m.addProvenance(v.Digest, v.Provenance)
	}
	return nil
}

// GetVerdicts retrieves all verdicts in insertion order.
func (m *MemoryStore) GetVerdicts() ([]*types.Verdict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid external modifications
	result := make([]*types.Verdict, len(m.verdicts))
	copy(result, m.verdicts)
	return result, nil
}

// GetDetections retrieves every detection with its target.
func (m *MemoryStore) GetDetections() ([]*DetectionRecord, error) {
	verdicts, _ := m.GetVerdicts()
	return detectionsOf(verdicts), nil
}

// TargetExists checks if a target has already been scanned.
func (m *MemoryStore) TargetExists(d types.Digest) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.targets[d]
	return exists, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// provenanceKey mirrors the uniqueness constraint of the SQLite schema.
func provenanceKey(p types.Provenance) string {
	var pid int
	if pp, ok := p.(types.ProcessProvenance); ok {
		pid = pp.PID
	}
	return fmt.Sprintf("%s\x00%s\x00%d", p.Kind(), p.Path(), pid)
}
