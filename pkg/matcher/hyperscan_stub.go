//go:build !cgo || !hyperscan

package matcher

import (
	"fmt"
)

// HyperscanMatcher is unavailable in this build.
type HyperscanMatcher struct{}

// NewHyperscan stub for builds without Hyperscan (non-CGO or missing hyperscan tag).
// Returns an error indicating Hyperscan requires CGO.
func NewHyperscan(patterns [][]byte) (*HyperscanMatcher, error) {
	return nil, fmt.Errorf("Hyperscan requires CGO (build with CGO_ENABLED=1 and -tags=hyperscan)")
}

// Patterns returns 0.
func (m *HyperscanMatcher) Patterns() int { return 0 }

// NewStream always fails.
func (m *HyperscanMatcher) NewStream() (Stream, error) {
	return nil, fmt.Errorf("Hyperscan not available in this build")
}

// Close is a no-op.
func (m *HyperscanMatcher) Close() error { return nil }
