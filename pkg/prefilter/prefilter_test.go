package prefilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefilter_SignaturesWithMatchingAnchors(t *testing.T) {
	anchors := [][][]byte{
		{[]byte("MZ")},
		{{0xDE, 0xAD, 0xBE, 0xEF}},
	}

	pf := New(anchors)
	filtered := pf.Filter([]byte("MZ\x90\x00 header only"))

	// Should return signature 0 (contains "MZ"), not signature 1
	require.Len(t, filtered, 1)
	assert.Equal(t, 0, filtered[0])
}

func TestPrefilter_SignaturesWithoutAnchors(t *testing.T) {
	pf := New([][][]byte{nil, {}})
	filtered := pf.Filter([]byte("test content without matches"))

	// Both signatures should be returned (no anchors = always check)
	assert.Equal(t, []int{0, 1}, filtered)
	assert.Equal(t, 0, pf.Anchors())
}

func TestPrefilter_SharedAnchor(t *testing.T) {
	anchors := [][][]byte{
		{[]byte("EICAR")},
		{[]byte("X5O"), []byte("EICAR")},
		{[]byte("nope")},
	}

	pf := New(anchors)
	assert.Equal(t, 3, pf.Anchors())

	assert.Equal(t, []int{0, 1}, pf.Filter([]byte("...EICAR...")))
	assert.Equal(t, []int{1}, pf.Filter([]byte("X5O!P%@AP")))
	assert.Empty(t, pf.Filter([]byte("clean")))
}

func TestPrefilter_MixedAlwaysAndAnchored(t *testing.T) {
	anchors := [][][]byte{
		{[]byte("zz")},
		nil,
		{[]byte("aa")},
	}

	pf := New(anchors)
	assert.Equal(t, []int{0, 1}, pf.Filter([]byte("zz")))
	assert.Equal(t, []int{1, 2}, pf.Filter([]byte("aa")))
	assert.Equal(t, []int{1}, pf.Filter(nil))
}
