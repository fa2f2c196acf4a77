package matcher

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/dlclark/regexp2"
)

// regexpTimeout bounds a single match attempt.
const regexpTimeout = 5 * time.Second

// byteAligned restricts a hex-dump match to start on a byte boundary, so
// "4d5a" cannot match the middle nibbles of "f4d5a0".
const byteAligned = `(?:[0-9a-f]{2})*?`

// RegexpMatcher matches patterns by running regular expressions over the
// lower-case hex rendering of the input.
//
// This is how older signature tooling evaluated signatures. It is much
// slower than the automaton and exists for compatibility checks.
//
// Thread Safety: RegexpMatcher is safe for concurrent use; each Stream
// owns its own carry window and bitset.
type RegexpMatcher struct {
	res    []*regexp2.Regexp
	maxLen int
}

// NewRegexp compiles one expression per pattern.
func NewRegexp(patterns [][]byte) (*RegexpMatcher, error) {
	m := &RegexpMatcher{res: make([]*regexp2.Regexp, len(patterns))}
	for i, p := range patterns {
		if len(p) == 0 {
			return nil, fmt.Errorf("pattern %d is empty", i)
		}
		re, err := regexp2.Compile("^"+byteAligned+hex.EncodeToString(p), regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %d: %w", i, err)
		}
		// Set timeout to prevent runaway backtracking on huge chunks
		re.MatchTimeout = regexpTimeout
		m.res[i] = re
		m.maxLen = max(m.maxLen, len(p))
	}
	return m, nil
}

// Patterns returns the pattern count.
func (m *RegexpMatcher) Patterns() int {
	return len(m.res)
}

// NewStream starts a scan with an empty carry window.
func (m *RegexpMatcher) NewStream() (Stream, error) {
	return &regexpStream{
		m:      m,
		window: NewWindow(m.maxLen),
		hits:   bitset.New(uint(len(m.res))),
		first:  unseen(len(m.res)),
	}, nil
}

// Close is a no-op.
func (m *RegexpMatcher) Close() error {
	return nil
}

// regexpStream re-examines the carry window with every chunk because
// regular expressions keep no state between calls.
type regexpStream struct {
	m      *RegexpMatcher
	window *Window
	hits   *bitset.BitSet
	first  []int64
	offset int64
}

func (s *regexpStream) Write(chunk []byte) error {
	// Stream offset of the first byte of the dump.
	base := s.offset - int64(len(s.window.Carry()))
	dump := hex.EncodeToString(s.window.Join(chunk))
	for i, re := range s.m.res {
		if s.hits.Test(uint(i)) {
			continue
		}
		m, err := re.FindStringMatch(dump)
		if err != nil {
			return fmt.Errorf("pattern %d: %w", i, err)
		}
		if m != nil {
			// Matches are anchored at 0, so Length/2 is the end in bytes.
			s.hits.Set(uint(i))
			s.first[i] = base + int64(m.Length/2)
		}
	}
	s.window.Advance(chunk)
	s.offset += int64(len(chunk))
	return nil
}

func (s *regexpStream) Hits() *bitset.BitSet {
	return s.hits
}

func (s *regexpStream) Offset() int64 {
	return s.offset
}

func (s *regexpStream) FirstEnd(i int) int64 {
	return firstEnd(s.first, i)
}

func (s *regexpStream) Close() error {
	return nil
}
