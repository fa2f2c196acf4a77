package prefilter

import (
	"bytes"
	"fmt"
	"strings"
)

// Mode selects how aggressively the streaming matcher skips input while
// the automaton sits at its root state.
type Mode int

const (
	// ModeExact skips only bytes that begin no pattern. A skipped byte can
	// never start a match, so no occurrence is lost.
	ModeExact Mode = iota

	// ModeRareness additionally skips bytes that are not informative.
	// Faster on large inputs, but a pattern that starts with a common byte
	// can be missed.
	ModeRareness
)

// String returns the flag spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeRareness:
		return "rareness"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as accepted on the command line.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return ModeExact, nil
	case "rareness", "rare":
		return ModeRareness, nil
	default:
		return ModeExact, fmt.Errorf("unknown prefilter mode %q (expected exact or rareness)", s)
	}
}

// Informative counts every byte value across all patterns and flags those
// that occur at most once. Bytes absent from every pattern are informative
// too.
func Informative(patterns [][]byte) [256]bool {
	var counts [256]int
	for _, p := range patterns {
		for _, b := range p {
			counts[b]++
		}
	}

	var table [256]bool
	for b, n := range counts {
		table[b] = n <= 1
	}
	return table
}

// Table is the per-signature skip table consulted at the automaton root.
type Table struct {
	Informative [256]bool
	Starts      [256]bool

	mode   Mode
	skip   [256]bool
	single int // the only non-skipped byte, or -1
}

// NewTable builds the skip table for patterns.
func NewTable(patterns [][]byte, mode Mode) *Table {
	t := &Table{
		Informative: Informative(patterns),
		mode:        mode,
		single:      -1,
	}
	for _, p := range patterns {
		if len(p) > 0 {
			t.Starts[p[0]] = true
		}
	}

	keep := 0
	for b := 0; b < 256; b++ {
		t.skip[b] = !t.Starts[b]
		if mode == ModeRareness && !t.Informative[b] {
			t.skip[b] = true
		}
		if !t.skip[b] {
			keep++
			t.single = b
		}
	}
	if keep != 1 {
		t.single = -1
	}
	return t
}

// Mode returns the mode the table was built with.
func (t *Table) Mode() Mode {
	return t.mode
}

// Skippable reports whether b may be passed over while at the root.
func (t *Table) Skippable(b byte) bool {
	return t.skip[b]
}

// Next returns the first position at or after from whose byte must be fed
// to the automaton, or len(buf) if the rest of buf can be skipped.
func (t *Table) Next(buf []byte, from int) int {
	if from >= len(buf) {
		return len(buf)
	}
	if t.single >= 0 {
		i := bytes.IndexByte(buf[from:], byte(t.single))
		if i < 0 {
			return len(buf)
		}
		return from + i
	}
	for i := from; i < len(buf); i++ {
		if !t.skip[buf[i]] {
			return i
		}
	}
	return len(buf)
}
