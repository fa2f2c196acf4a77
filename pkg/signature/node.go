// Package signature parses textual malware signatures into boolean trees
// over literal byte patterns and evaluates them against hit bitsets.
//
// A signature is an expression such as
//
//	(4D5A AND 50450000) OR DEADBEEF
//
// where every bare term is a hexadecimal byte pattern, AND binds tighter
// than OR, and parentheses group sub-expressions.
package signature

import "strings"

// Op identifies the kind of a Node.
type Op uint8

const (
	// OpPattern is a leaf holding a single hex pattern.
	OpPattern Op = iota
	// OpAnd is true when every child is true.
	OpAnd
	// OpOr is true when any child is true.
	OpOr
)

// String returns the operator keyword, or "PATTERN" for leaves.
func (o Op) String() string {
	switch o {
	case OpPattern:
		return "PATTERN"
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	default:
		return "UNKNOWN"
	}
}

// Node is one vertex of a parsed signature tree.
//
// Leaves (OpPattern) carry the normalized hex text in Pattern and, once a
// Registry has been applied, the dense pattern index in Index. Interior
// nodes carry two or more Children.
type Node struct {
	Op       Op
	Pattern  string
	Index    int
	Children []*Node
}

// NewPattern returns an unindexed leaf for the given normalized hex text.
func NewPattern(hex string) *Node {
	return &Node{Op: OpPattern, Pattern: hex, Index: -1}
}

// Walk visits n and its descendants in pre-order.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// String renders the tree back to expression text.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	if n.Op == OpPattern {
		return n.Pattern
	}

	sep := " " + n.Op.String() + " "
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		s := c.String()
		if c.Op != OpPattern && !(n.Op == OpOr && c.Op == OpAnd) {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep)
}
