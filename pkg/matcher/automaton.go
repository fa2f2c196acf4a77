package matcher

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/praetorian-inc/fdsec/pkg/automaton"
	"github.com/praetorian-inc/fdsec/pkg/prefilter"
)

// AutomatonMatcher drives an Aho-Corasick automaton, optionally consulting
// a prefilter table to skip bytes while the automaton is at its root.
type AutomatonMatcher struct {
	a     *automaton.Automaton
	table *prefilter.Table
}

// NewAutomaton builds a matcher over patterns.
func NewAutomaton(patterns [][]byte, mode prefilter.Mode) *AutomatonMatcher {
	return &AutomatonMatcher{
		a:     automaton.Build(patterns),
		table: prefilter.NewTable(patterns, mode),
	}
}

// FromAutomaton wraps an already built automaton. A nil table disables
// skipping.
func FromAutomaton(a *automaton.Automaton, table *prefilter.Table) *AutomatonMatcher {
	return &AutomatonMatcher{a: a, table: table}
}

// Automaton returns the underlying automaton.
func (m *AutomatonMatcher) Automaton() *automaton.Automaton {
	return m.a
}

// Patterns returns the pattern count.
func (m *AutomatonMatcher) Patterns() int {
	return m.a.Patterns()
}

// NewStream starts a scan at the root state.
func (m *AutomatonMatcher) NewStream() (Stream, error) {
	return m.Stream(), nil
}

// Stream is NewStream with the concrete type.
func (m *AutomatonMatcher) Stream() *AutomatonStream {
	n := m.a.Patterns()
	return &AutomatonStream{
		a:     m.a,
		table: m.table,
		state: automaton.Root,
		hits:  bitset.New(uint(n)),
		first: unseen(n),
	}
}

// Close is a no-op.
func (m *AutomatonMatcher) Close() error {
	return nil
}

// AutomatonStream is the per-target state of an AutomatonMatcher.
type AutomatonStream struct {
	a      *automaton.Automaton
	table  *prefilter.Table
	state  int32
	offset int64
	hits   *bitset.BitSet
	first  []int64
}

// Write feeds chunk through the automaton starting from the state the
// previous chunk left off in. Every byte is consumed exactly once.
func (s *AutomatonStream) Write(chunk []byte) error {
	a := s.a
	state := s.state
	for i := 0; i < len(chunk); i++ {
		if state == automaton.Root && s.table != nil {
			if i = s.table.Next(chunk, i); i == len(chunk) {
				break
			}
		}
		var out []int
		state, out = a.Step(state, chunk[i])
		for _, p := range out {
			if !s.hits.Test(uint(p)) {
				s.hits.Set(uint(p))
				s.first[p] = s.offset + int64(i) + 1
			}
		}
	}
	s.state = state
	s.offset += int64(len(chunk))
	return nil
}

// Hits returns the patterns seen so far.
func (s *AutomatonStream) Hits() *bitset.BitSet {
	return s.hits
}

// Offset returns the number of bytes consumed.
func (s *AutomatonStream) Offset() int64 {
	return s.offset
}

// FirstEnd returns the stream offset just past the first occurrence of
// pattern i, or -1 if it has not been seen.
func (s *AutomatonStream) FirstEnd(i int) int64 {
	return firstEnd(s.first, i)
}

// unseen returns n first-occurrence slots, all -1.
func unseen(n int) []int64 {
	first := make([]int64, n)
	for i := range first {
		first[i] = -1
	}
	return first
}

func firstEnd(first []int64, i int) int64 {
	if i < 0 || i >= len(first) {
		return -1
	}
	return first[i]
}

// Close is a no-op.
func (s *AutomatonStream) Close() error {
	return nil
}
