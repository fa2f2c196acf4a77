package hashlist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

var (
	evil   = types.ComputeDigest([]byte("evil"))
	benign = types.ComputeDigest([]byte("benign"))
)

func TestSet_AddContains(t *testing.T) {
	s := NewSet(0)
	assert.False(t, s.Contains(evil))

	s.Add(evil)
	assert.True(t, s.Contains(evil))
	assert.False(t, s.Contains(benign))
	assert.Equal(t, 1, s.Len())
}

func TestSet_NilIsEmpty(t *testing.T) {
	var s *Set
	assert.False(t, s.Contains(evil))
	assert.Equal(t, 0, s.Len())
}

func TestFromLines(t *testing.T) {
	lines := []string{
		"# known bad",
		"",
		strings.ToUpper(evil.Hex()),
		benign.Hex() + "  sample.bin",
		"not-a-digest",
	}

	s, bad := FromLines(lines)
	assert.True(t, s.Contains(evil), "digests are case-insensitive")
	assert.True(t, s.Contains(benign), "sha256sum format is accepted")
	assert.Equal(t, 2, s.Len())

	require.Len(t, bad, 1)
	assert.Equal(t, 5, bad[0].Line)
	assert.Equal(t, "not-a-digest", bad[0].Text)
	assert.Contains(t, bad[0].Error(), "line 5")
}

func TestLoad(t *testing.T) {
	s, bad, err := Load(strings.NewReader(evil.Hex() + "\r\n" + benign.Hex() + "\n"))
	require.NoError(t, err)
	assert.Empty(t, bad)
	assert.Equal(t, 2, s.Len())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashes.txt")
	require.NoError(t, os.WriteFile(path, []byte(evil.Hex()+"\n"), 0644))

	s, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, s.Contains(evil))

	_, _, err = LoadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	d, n, err := Digest(bytes.NewReader([]byte("evil")))
	require.NoError(t, err)
	assert.Equal(t, evil, d)
	assert.Equal(t, int64(4), n)

	path := filepath.Join(t.TempDir(), "sample")
	require.NoError(t, os.WriteFile(path, []byte("benign"), 0644))
	d, n, err = DigestFile(path)
	require.NoError(t, err)
	assert.Equal(t, benign, d)
	assert.Equal(t, int64(6), n)
}

func TestLists_Lookup(t *testing.T) {
	black, _ := FromLines([]string{evil.Hex(), benign.Hex()})
	white, _ := FromLines([]string{benign.Hex()})
	lists := &Lists{Blacklist: black, Whitelist: white}

	outcome, ok := lists.Lookup(evil)
	assert.True(t, ok)
	assert.Equal(t, types.OutcomeMalicious, outcome)

	outcome, ok = lists.Lookup(benign)
	assert.True(t, ok)
	assert.Equal(t, types.OutcomeWhitelisted, outcome, "whitelist wins")

	_, ok = lists.Lookup(types.ComputeDigest([]byte("other")))
	assert.False(t, ok)

	assert.False(t, lists.Empty())
	assert.True(t, (&Lists{}).Empty())

	var none *Lists
	_, ok = none.Lookup(evil)
	assert.False(t, ok)
	assert.True(t, none.Empty())
}
