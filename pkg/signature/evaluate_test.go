package signature

import (
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
)

func compiled(t *testing.T, text string) (*Node, *Registry) {
	t.Helper()
	root := MustParse(text)
	reg := NewRegistry(root)
	reg.Assign(root)
	return root, reg
}

func hits(reg *Registry, patterns ...string) *bitset.BitSet {
	b := bitset.New(uint(reg.Len()))
	for _, p := range patterns {
		if i, ok := reg.Index(p); ok {
			b.Set(uint(i))
		}
	}
	return b
}

func TestEvaluate_Laws(t *testing.T) {
	and, andReg := compiled(t, "AA AND BB")
	or, orReg := compiled(t, "AA OR BB")

	tests := []struct {
		name string
		seen []string
		and  bool
		or   bool
	}{
		{"none", nil, false, false},
		{"left only", []string{"AA"}, false, true},
		{"right only", []string{"BB"}, false, true},
		{"both", []string{"AA", "BB"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.and, Evaluate(and, hits(andReg, tt.seen...)))
			assert.Equal(t, tt.or, Evaluate(or, hits(orReg, tt.seen...)))
		})
	}
}

func TestEvaluate_Nested(t *testing.T) {
	root, reg := compiled(t, "(AABB AND CCDD) OR EEFF")

	assert.True(t, Evaluate(root, hits(reg, "EEFF")))
	assert.True(t, Evaluate(root, hits(reg, "AABB", "CCDD")))
	assert.False(t, Evaluate(root, hits(reg, "AABB")))
	assert.False(t, Evaluate(root, hits(reg)))
}

func TestEvaluate_Monotone(t *testing.T) {
	root, reg := compiled(t, "AA AND (BB OR CC) AND DD")
	b := bitset.New(uint(reg.Len()))

	var last bool
	for _, p := range []string{"CC", "AA", "DD", "BB"} {
		i, _ := reg.Index(p)
		b.Set(uint(i))
		got := Evaluate(root, b)
		if last {
			assert.True(t, got, "evaluation must not flip back to false")
		}
		last = got
	}
	assert.True(t, last)
}

func TestEvaluate_UnassignedLeafIsFalse(t *testing.T) {
	root := MustParse("AA")
	assert.False(t, Evaluate(root, bitset.New(8).Set(0)))
}

func TestAnchors(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		expected []string
	}{
		{"pattern", "AA", []string{"AA"}},
		{"or is union", "AA OR BB", []string{"AA", "BB"}},
		{"and picks smallest child", "(AA OR BB) AND CC", []string{"CC"}},
		{"nested", "(AA AND BB) OR (CC AND (DD OR EE))", []string{"AA", "CC"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, reg := compiled(t, tt.expr)
			var want []int
			for _, p := range tt.expected {
				i, _ := reg.Index(p)
				want = append(want, i)
			}
			assert.ElementsMatch(t, want, Anchors(root))
		})
	}
}

func TestAnchors_UnassignedTreeHasNone(t *testing.T) {
	assert.Empty(t, Anchors(MustParse("AA OR BB")))
}
