package matcher

import (
	"fmt"

	"github.com/praetorian-inc/fdsec/pkg/prefilter"
)

// Config for matcher initialization.
type Config struct {
	// Backend selects the implementation (default: automaton)
	Backend Backend

	// Prefilter controls byte skipping in the automaton backend
	Prefilter prefilter.Mode
}

// New creates a Matcher for one signature's decoded patterns.
//
// The automaton backend is pure Go and the default. For maximum
// performance on large targets, use BackendHyperscan with CGO_ENABLED=1
// and -tags=hyperscan.
func New(patterns [][]byte, cfg Config) (Matcher, error) {
	switch cfg.Backend {
	case BackendAutomaton:
		return NewAutomaton(patterns, cfg.Prefilter), nil
	case BackendRegexp:
		m, err := NewRegexp(patterns)
		if err != nil {
			return nil, err
		}
		return m, nil
	case BackendHyperscan:
		m, err := NewHyperscan(patterns)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown matcher backend %v", cfg.Backend)
	}
}
