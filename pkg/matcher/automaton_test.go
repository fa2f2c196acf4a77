package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/fdsec/pkg/prefilter"
)

func TestAutomatonMatcher_StreamsAreIndependent(t *testing.T) {
	m := NewAutomaton([][]byte{{0xAA, 0xBB}}, prefilter.ModeExact)
	assert.Equal(t, 1, m.Patterns())
	assert.Equal(t, 2, m.Automaton().MaxPatternLen())

	s1, err := m.NewStream()
	require.NoError(t, err)
	s2, err := m.NewStream()
	require.NoError(t, err)

	require.NoError(t, s1.Write([]byte{0xAA}))
	require.NoError(t, s2.Write([]byte{0xBB}))
	require.NoError(t, s1.Write([]byte{0xBB}))

	assert.True(t, s1.Hits().Test(0))
	assert.False(t, s2.Hits().Test(0))
	assert.NoError(t, s1.Close())
}

func TestAutomatonStream_NilTableFeedsEveryByte(t *testing.T) {
	m := NewAutomaton([][]byte{{0x01, 0x02}}, prefilter.ModeExact)
	s := FromAutomaton(m.Automaton(), nil).Stream()

	require.NoError(t, s.Write([]byte{0x00, 0x01}))
	require.NoError(t, s.Write([]byte{0x02}))
	assert.True(t, s.Hits().Test(0))
	assert.Equal(t, int64(3), s.FirstEnd(0))
}
