package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FirstOccurrenceOrder(t *testing.T) {
	root := MustParse("(CC AND AA) OR (AA AND BB) OR CC")
	reg := NewRegistry(root)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"CC", "AA", "BB"}, reg.Patterns())

	i, ok := reg.Index("BB")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = reg.Index("DD")
	assert.False(t, ok)
}

func TestRegistry_Deterministic(t *testing.T) {
	text := "4D5A AND (DEADBEEF OR CAFEBABE) AND 4D5A"
	a := NewRegistry(MustParse(text))
	b := NewRegistry(MustParse(text))
	assert.Equal(t, a.Patterns(), b.Patterns())
}

func TestRegistry_AssignAnnotatesLeaves(t *testing.T) {
	root := MustParse("AA AND (BB OR AA)")
	reg := NewRegistry(root)
	reg.Assign(root)

	root.Walk(func(n *Node) {
		if n.Op != OpPattern {
			assert.Equal(t, -1, n.Index, "interior nodes are not indexed")
			return
		}
		want, ok := reg.Index(n.Pattern)
		require.True(t, ok)
		assert.Equal(t, want, n.Index)
	})
}

func TestRegistry_PatternsReturnsCopy(t *testing.T) {
	reg := NewRegistry(MustParse("AA OR BB"))
	p := reg.Patterns()
	p[0] = "FF"
	assert.Equal(t, []string{"AA", "BB"}, reg.Patterns())
}

func TestRegistry_Decode(t *testing.T) {
	reg := NewRegistry(MustParse("4d5a AND DE AD BE EF"))
	got, err := reg.Decode()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x4D, 0x5A}, {0xDE, 0xAD, 0xBE, 0xEF}}, got)
}

func TestDecodePattern_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		msg     string
	}{
		{"odd length", "ABC", "odd"},
		{"not hex", "ZZ", "invalid byte"},
		{"empty", "", "empty"},
		{"spaces only", "  ", "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePattern(tt.pattern)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPatternDecode)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRegistry_DecodeFailsOnBadPattern(t *testing.T) {
	reg := NewRegistry(MustParse("AABB OR XYZ1"))
	_, err := reg.Decode()
	assert.ErrorIs(t, err, ErrPatternDecode)
}
