package matcher

import (
	"errors"
	"io"

	"github.com/bits-and-blooms/bitset"

	"github.com/praetorian-inc/fdsec/pkg/automaton"
	"github.com/praetorian-inc/fdsec/pkg/prefilter"
)

// StopFunc is consulted after every chunk; returning true ends the scan
// early. It typically evaluates the signature tree against the hits.
type StopFunc func(hits *bitset.BitSet) bool

// Scan streams src through a fresh automaton stream and returns the hit
// bitset. On a read failure the partial bitset is returned together with a
// *SourceError.
func Scan(src Source, a *automaton.Automaton, table *prefilter.Table, stop StopFunc) (*bitset.BitSet, error) {
	s := FromAutomaton(a, table).Stream()
	err := Run(src, s, stop)
	return s.Hits(), err
}

// Run pulls chunks from src into s until the source is exhausted or stop
// reports true.
func Run(src Source, s Stream, stop StopFunc) error {
	for {
		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &SourceError{Offset: s.Offset(), Err: err}
		}
		if err := s.Write(chunk); err != nil {
			return err
		}
		if stop != nil && stop(s.Hits()) {
			return nil
		}
	}
}
