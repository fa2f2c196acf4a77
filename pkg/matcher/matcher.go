package matcher

import (
	"github.com/bits-and-blooms/bitset"
)

// Matcher is the compiled pattern set of one signature. It is immutable
// and may be shared by concurrent scans; per-target state lives in the
// Streams it creates.
type Matcher interface {
	// Patterns returns the number of patterns, which is also the size of
	// every stream's hit bitset.
	Patterns() int

	// NewStream starts matching a new target.
	NewStream() (Stream, error)

	// Close releases resources (e.g., Hyperscan databases).
	Close() error
}

// Stream consumes one target's chunks in order. Match state carries over
// between writes, so a pattern split across two chunks is still found.
type Stream interface {
	// Write feeds the next chunk.
	Write(chunk []byte) error

	// Hits returns the bitset of patterns seen so far. Bits are only ever
	// set. The bitset is owned by the stream.
	Hits() *bitset.BitSet

	// Offset returns the number of bytes written.
	Offset() int64

	// FirstEnd returns the stream offset just past the first occurrence
	// of pattern i, or -1 if it has not been seen.
	FirstEnd(i int) int64

	// Close releases per-stream resources.
	Close() error
}
