package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

func TestMerge_EmptySources(t *testing.T) {
	_, err := Merge(MergeConfig{DestPath: filepath.Join(t.TempDir(), "dest.db")})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no source databases")
}

func TestMerge_NoDestination(t *testing.T) {
	_, err := Merge(MergeConfig{SourcePaths: []string{"source.db"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "destination path is required")
}

func seed(t *testing.T, path string, verdicts ...*types.Verdict) {
	t.Helper()
	s, err := NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AddSignature(&types.Signature{ID: "fdsec.test.1", Expression: "4D5A"}))
	for _, v := range verdicts {
		require.NoError(t, s.AddVerdict(v))
	}
}

func TestMerge_MultipleSources(t *testing.T) {
	dir := t.TempDir()
	hostA := filepath.Join(dir, "a.db")
	hostB := filepath.Join(dir, "b.db")
	dest := filepath.Join(dir, "merged.db")

	shared := maliciousVerdict("shared")
	seed(t, hostA, shared, maliciousVerdict("only-a"))
	seed(t, hostB, shared)

	stats, err := Merge(MergeConfig{SourcePaths: []string{hostA, hostB}, DestPath: dest})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.SourcesProcessed)
	assert.Equal(t, 1, stats.SignaturesMerged)
	assert.Equal(t, 2, stats.TargetsMerged)
	assert.Equal(t, 3, stats.VerdictsMerged)
	assert.Equal(t, 6, stats.DetectionsMerged)

	s, err := NewSQLite(dest)
	require.NoError(t, err)
	defer s.Close()

	verdicts, err := s.GetVerdicts()
	require.NoError(t, err)
	require.Len(t, verdicts, 3)
	for _, v := range verdicts {
		require.Len(t, v.Detections, 2)
		assert.Equal(t, []int64{0, 12}, v.Detections[0].Offsets)
	}

	exists, err := s.TargetExists(shared.Digest)
	require.NoError(t, err)
	assert.True(t, exists)
}
