package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Signature is one malware signature with its metadata.
type Signature struct {
	ID           string   // e.g., "fdsec.eicar.1" or "line.12"
	Name         string   // human-readable name
	Expression   string   // boolean expression over hex patterns
	StructuralID string   // SHA-1 of the normalized expression (computed)
	Severity     string   // optional: low, medium, high, critical
	Description  string   // optional
	References   []string // documentation URLs
	Categories   []string // classification tags
}

// ComputeStructuralID computes SHA-1 of the expression after removing
// whitespace and upper-casing, so cosmetic edits keep the same identity.
func (s *Signature) ComputeStructuralID() string {
	normalized := strings.ToUpper(strings.Join(strings.Fields(s.Expression), " "))
	h := sha1.New()
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}

// DisplayName returns Name, falling back to ID.
func (s *Signature) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
