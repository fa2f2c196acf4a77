package matcher

import (
	"fmt"
	"strings"
)

// ChunkConfig configures how targets are split for streaming.
type ChunkConfig struct {
	ChunkSize int // Bytes handed to the matcher per step (default: 4MiB)
	Prefetch  int // Chunks read ahead on a background goroutine (0 = none)
}

// DefaultChunkConfig returns production defaults
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize: 4 * 1024 * 1024, // 4MiB
		Prefetch:  0,
	}
}

func (c ChunkConfig) normalized() ChunkConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkConfig().ChunkSize
	}
	if c.Prefetch < 0 {
		c.Prefetch = 0
	}
	return c
}

// Backend selects the pattern matching implementation.
type Backend int

const (
	// BackendAutomaton is the built-in Aho-Corasick matcher.
	BackendAutomaton Backend = iota
	// BackendRegexp evaluates patterns as regular expressions over a hex
	// rendering of the input. Slow; kept for compatibility with old
	// signature tooling and as a cross-check.
	BackendRegexp
	// BackendHyperscan uses Hyperscan stream databases. Requires a cgo
	// build with the hyperscan tag.
	BackendHyperscan
)

func (b Backend) String() string {
	switch b {
	case BackendAutomaton:
		return "automaton"
	case BackendRegexp:
		return "regexp"
	case BackendHyperscan:
		return "hyperscan"
	default:
		return "unknown"
	}
}

// ParseBackend parses a backend name.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "automaton", "ac":
		return BackendAutomaton, nil
	case "regexp", "regex":
		return BackendRegexp, nil
	case "hyperscan", "hs":
		return BackendHyperscan, nil
	default:
		return BackendAutomaton, fmt.Errorf("unknown matcher backend %q (expected automaton, regexp, or hyperscan)", s)
	}
}

// HyperscanAvailable reports whether this binary was built with Hyperscan.
func HyperscanAvailable() bool {
	return hyperscanAvailable()
}
