package signature

import (
	"encoding/hex"
)

// Registry assigns dense indices to the distinct patterns of a tree.
// Indices follow first-occurrence order of a pre-order walk, so the same
// tree always produces the same assignment.
type Registry struct {
	patterns []string
	index    map[string]int
}

// NewRegistry collects the distinct patterns of root.
func NewRegistry(root *Node) *Registry {
	r := &Registry{index: make(map[string]int)}
	root.Walk(func(n *Node) {
		if n.Op != OpPattern {
			return
		}
		if _, ok := r.index[n.Pattern]; ok {
			return
		}
		r.index[n.Pattern] = len(r.patterns)
		r.patterns = append(r.patterns, n.Pattern)
	})
	return r
}

// Len returns the number of distinct patterns.
func (r *Registry) Len() int {
	return len(r.patterns)
}

// Patterns returns the patterns in index order.
func (r *Registry) Patterns() []string {
	out := make([]string, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// Index returns the index assigned to pattern.
func (r *Registry) Index(pattern string) (int, bool) {
	i, ok := r.index[pattern]
	return i, ok
}

// Assign annotates every pattern leaf of root with its index. Leaves whose
// pattern is unknown to the registry get -1.
func (r *Registry) Assign(root *Node) {
	root.Walk(func(n *Node) {
		if n.Op != OpPattern {
			return
		}
		if i, ok := r.index[n.Pattern]; ok {
			n.Index = i
		} else {
			n.Index = -1
		}
	})
}

// Decode returns the byte sequence of every pattern, in index order.
func (r *Registry) Decode() ([][]byte, error) {
	out := make([][]byte, len(r.patterns))
	for i, p := range r.patterns {
		b, err := DecodePattern(p)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// DecodePattern converts hex text to bytes. Whitespace is ignored and
// digits are case-insensitive.
func DecodePattern(pattern string) ([]byte, error) {
	p := NormalizePattern(pattern)
	if p == "" {
		return nil, decodeError(pattern, "empty pattern")
	}
	if len(p)%2 != 0 {
		return nil, decodeError(pattern, "odd number of hex digits")
	}
	b, err := hex.DecodeString(p)
	if err != nil {
		return nil, decodeError(pattern, err.Error())
	}
	return b, nil
}
