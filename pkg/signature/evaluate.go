package signature

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// Evaluate reports whether the tree is satisfied by the observed patterns.
// Bit i of hits records whether pattern i was seen. Because bits are only
// ever set during a scan, calling Evaluate on a growing bitset is safe: once
// it returns true it stays true.
func Evaluate(n *Node, hits *bitset.BitSet) bool {
	switch n.Op {
	case OpPattern:
		return n.Index >= 0 && hits.Test(uint(n.Index))

	case OpAnd:
		for _, c := range n.Children {
			if !Evaluate(c, hits) {
				return false
			}
		}
		return len(n.Children) > 0

	case OpOr:
		for _, c := range n.Children {
			if Evaluate(c, hits) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// Anchors returns pattern indices of which at least one must be present for
// the tree to evaluate true. An Or needs any child, so its anchors are the
// union of its children's; an And needs every child, so the smallest child
// set suffices. The result is sorted. An empty result means the tree has
// no usable anchor. Indices must already be assigned.
func Anchors(n *Node) []int {
	set := anchors(n)
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func anchors(n *Node) map[int]struct{} {
	switch n.Op {
	case OpPattern:
		if n.Index < 0 {
			return nil
		}
		return map[int]struct{}{n.Index: {}}

	case OpOr:
		union := make(map[int]struct{})
		for _, c := range n.Children {
			a := anchors(c)
			if len(a) == 0 {
				return nil
			}
			for i := range a {
				union[i] = struct{}{}
			}
		}
		return union

	case OpAnd:
		var best map[int]struct{}
		for _, c := range n.Children {
			a := anchors(c)
			if len(a) == 0 {
				continue
			}
			if best == nil || len(a) < len(best) {
				best = a
			}
		}
		return best

	default:
		return nil
	}
}
