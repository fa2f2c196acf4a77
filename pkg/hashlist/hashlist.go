// Package hashlist implements digest blacklists and whitelists that are
// consulted before any signature matching.
package hashlist

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

// falsePositiveRate of the bloom filter in front of the exact set.
const falsePositiveRate = 0.001

// Set is a concurrency-safe set of SHA-256 digests. A bloom filter answers
// most negative lookups without touching the map.
type Set struct {
	mu      sync.RWMutex
	filter  *bloom.BloomFilter
	digests map[types.Digest]struct{}
}

// NewSet creates an empty set sized for roughly capacity entries.
func NewSet(capacity int) *Set {
	if capacity < 1024 {
		capacity = 1024
	}
	return &Set{
		filter:  bloom.NewWithEstimates(uint(capacity), falsePositiveRate),
		digests: make(map[types.Digest]struct{}, capacity),
	}
}

// Add inserts d.
func (s *Set) Add(d types.Digest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Add(d[:])
	s.digests[d] = struct{}{}
}

// Contains reports whether d is in the set.
func (s *Set) Contains(d types.Digest) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.filter.Test(d[:]) {
		return false
	}
	_, ok := s.digests[d]
	return ok
}

// Len returns the number of digests.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.digests)
}

// LineError describes a line that is not a valid digest.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// FromLines builds a set from hex digest strings. Blank lines and lines
// starting with '#' are ignored; invalid lines are reported and skipped.
func FromLines(lines []string) (*Set, []LineError) {
	s := NewSet(len(lines))
	var bad []LineError
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Allow "sha256sum" output: digest followed by a file name.
		if fields := strings.Fields(line); len(fields) > 1 {
			line = fields[0]
		}
		d, err := types.ParseDigest(line)
		if err != nil {
			bad = append(bad, LineError{Line: i + 1, Text: line, Err: err})
			continue
		}
		s.Add(d)
	}
	return s, bad
}

// Load reads one digest per line from r.
func Load(r io.Reader) (*Set, []LineError, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read hash list: %w", err)
	}
	s, bad := FromLines(lines)
	return s, bad, nil
}

// LoadFile reads a hash list from path.
func LoadFile(path string) (*Set, []LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open hash list: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Digest hashes everything readable from r.
func Digest(r io.Reader) (types.Digest, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return types.Digest{}, n, err
	}
	var d types.Digest
	copy(d[:], h.Sum(nil))
	return d, n, nil
}

// DigestFile hashes the file at path.
func DigestFile(path string) (types.Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Digest{}, 0, err
	}
	defer f.Close()
	return Digest(f)
}

// Lists pairs the trusted and known-bad digest sets. Either may be nil.
type Lists struct {
	Blacklist *Set
	Whitelist *Set
}

// Empty reports whether neither list has entries.
func (l *Lists) Empty() bool {
	return l == nil || (l.Blacklist.Len() == 0 && l.Whitelist.Len() == 0)
}

// Lookup classifies d. The whitelist wins when a digest is on both lists.
// ok is false when d is on neither list.
func (l *Lists) Lookup(d types.Digest) (outcome types.Outcome, ok bool) {
	if l == nil {
		return types.OutcomeClean, false
	}
	if l.Whitelist.Contains(d) {
		return types.OutcomeWhitelisted, true
	}
	if l.Blacklist.Contains(d) {
		return types.OutcomeMalicious, true
	}
	return types.OutcomeClean, false
}
