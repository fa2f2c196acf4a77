//go:build cgo && hyperscan

package matcher

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/flier/gohs/hyperscan"
)

// HyperscanMatcher implements Matcher using a Hyperscan stream database.
// Patterns are compiled as escaped literals with SingleMatch, since a
// signature only needs to know whether each pattern occurred.
type HyperscanMatcher struct {
	db       hyperscan.StreamDatabase
	scratch  *hyperscan.Scratch
	patterns int
}

// NewHyperscan creates a Hyperscan-based matcher.
func NewHyperscan(patterns [][]byte) (*HyperscanMatcher, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no patterns provided")
	}

	compiled := make([]*hyperscan.Pattern, len(patterns))
	for i, p := range patterns {
		if len(p) == 0 {
			return nil, fmt.Errorf("pattern %d is empty", i)
		}
		hp := hyperscan.NewPattern(literal(p), hyperscan.SingleMatch)
		hp.Id = i // Pattern ID = index into the signature's registry
		compiled[i] = hp
	}

	db, err := hyperscan.NewStreamDatabase(compiled...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile Hyperscan database: %w", err)
	}

	scratch, err := hyperscan.NewScratch(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to allocate Hyperscan scratch: %w", err)
	}

	return &HyperscanMatcher{db: db, scratch: scratch, patterns: len(patterns)}, nil
}

// literal escapes every byte so the expression matches p verbatim.
func literal(p []byte) string {
	var b strings.Builder
	for _, c := range p {
		fmt.Fprintf(&b, `\x%02x`, c)
	}
	return b.String()
}

// Patterns returns the pattern count.
func (m *HyperscanMatcher) Patterns() int {
	return m.patterns
}

// NewStream opens a Hyperscan stream with its own scratch space.
func (m *HyperscanMatcher) NewStream() (Stream, error) {
	scratch, err := m.scratch.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to clone Hyperscan scratch: %w", err)
	}

	s := &hyperscanStream{scratch: scratch, hits: bitset.New(uint(m.patterns)), first: unseen(m.patterns)}
	onMatch := func(id uint, from, to uint64, flags uint, context interface{}) error {
		// "to" is relative to the start of the stream.
		if !s.hits.Test(id) {
			s.hits.Set(id)
			s.first[id] = int64(to)
		}
		return nil
	}

	hs, err := m.db.Open(0, scratch, onMatch, nil)
	if err != nil {
		scratch.Free()
		return nil, fmt.Errorf("failed to open Hyperscan stream: %w", err)
	}
	s.stream = hs
	return s, nil
}

// Close releases resources.
func (m *HyperscanMatcher) Close() error {
	if m.scratch != nil {
		if err := m.scratch.Free(); err != nil {
			return fmt.Errorf("failed to free scratch: %w", err)
		}
		m.scratch = nil
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		m.db = nil
	}
	return nil
}

type hyperscanStream struct {
	stream  hyperscan.Stream
	scratch *hyperscan.Scratch
	hits    *bitset.BitSet
	first   []int64
	offset  int64
}

func (s *hyperscanStream) Write(chunk []byte) error {
	if err := s.stream.Scan(chunk); err != nil {
		return fmt.Errorf("Hyperscan scan failed: %w", err)
	}
	s.offset += int64(len(chunk))
	return nil
}

func (s *hyperscanStream) Hits() *bitset.BitSet {
	return s.hits
}

func (s *hyperscanStream) Offset() int64 {
	return s.offset
}

func (s *hyperscanStream) FirstEnd(i int) int64 {
	return firstEnd(s.first, i)
}

func (s *hyperscanStream) Close() error {
	err := s.stream.Close()
	if ferr := s.scratch.Free(); err == nil {
		err = ferr
	}
	return err
}
