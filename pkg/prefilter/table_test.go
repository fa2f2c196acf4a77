package prefilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInformative(t *testing.T) {
	patterns := [][]byte{{0xAA, 0xBB}, {0xAA, 0xCC}, {0xDD}}
	table := Informative(patterns)

	assert.False(t, table[0xAA], "AA appears twice")
	assert.True(t, table[0xBB])
	assert.True(t, table[0xCC])
	assert.True(t, table[0xDD])
	assert.True(t, table[0x00], "absent bytes are informative")
}

func TestInformative_RepeatsWithinOnePattern(t *testing.T) {
	table := Informative([][]byte{{0x90, 0x90}})
	assert.False(t, table[0x90])
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{"", ModeExact, false},
		{"exact", ModeExact, false},
		{"EXACT", ModeExact, false},
		{"rareness", ModeRareness, false},
		{"rare", ModeRareness, false},
		{"fast", ModeExact, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "exact", ModeExact.String())
	assert.Equal(t, "rareness", ModeRareness.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
}

func TestTable_ExactSkipsOnlyNonStartBytes(t *testing.T) {
	tab := NewTable([][]byte{{0x4D, 0x5A}, {0xDE, 0xAD}}, ModeExact)

	assert.False(t, tab.Skippable(0x4D))
	assert.False(t, tab.Skippable(0xDE))
	assert.True(t, tab.Skippable(0x5A), "5A only occurs mid-pattern")
	assert.True(t, tab.Skippable(0x00))
	assert.Equal(t, ModeExact, tab.Mode())
}

func TestTable_Next(t *testing.T) {
	tab := NewTable([][]byte{{0x4D, 0x5A}, {0xDE, 0xAD}}, ModeExact)
	buf := []byte{0x00, 0x01, 0xDE, 0x02, 0x4D, 0x5A}

	assert.Equal(t, 2, tab.Next(buf, 0))
	assert.Equal(t, 2, tab.Next(buf, 2))
	assert.Equal(t, 4, tab.Next(buf, 3))
	assert.Equal(t, len(buf), tab.Next(buf, 5))
	assert.Equal(t, len(buf), tab.Next(buf, 99))
}

func TestTable_NextSingleStartByte(t *testing.T) {
	tab := NewTable([][]byte{{0x4D, 0x5A}, {0x4D, 0x00, 0x00}}, ModeExact)
	buf := []byte("xxxxMZyyMZ")

	assert.Equal(t, 4, tab.Next(buf, 0))
	assert.Equal(t, 8, tab.Next(buf, 5))
	assert.Equal(t, len(buf), tab.Next([]byte("nothing"), 0))
}

func TestTable_RarenessSkipsCommonStartBytes(t *testing.T) {
	// AA is used three times, so rareness mode treats it as noise even
	// though two patterns start with it.
	patterns := [][]byte{{0xAA, 0xAA}, {0xAA, 0xBB}, {0xCC}}

	exact := NewTable(patterns, ModeExact)
	rare := NewTable(patterns, ModeRareness)

	assert.False(t, exact.Skippable(0xAA))
	assert.True(t, rare.Skippable(0xAA))
	assert.False(t, rare.Skippable(0xCC))
}

func TestTable_NoPatternsSkipsEverything(t *testing.T) {
	tab := NewTable(nil, ModeExact)
	assert.Equal(t, 3, tab.Next([]byte{1, 2, 3}, 0))
}
