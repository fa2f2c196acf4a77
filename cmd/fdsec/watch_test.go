package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/fdsec/pkg/store"
)

// fakeProcRoot builds a procfs-like tree with one infected and one clean
// process image.
func fakeProcRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	bin := t.TempDir()

	procs := map[string]string{
		"4242": "miner",
		"4243": "sshd",
	}
	for pid, comm := range procs {
		image := filepath.Join(bin, comm)
		content := "\x7fELF clean image"
		if comm == "miner" {
			content = "\x7fELF " + eicar
		}
		writeFile(t, image, content)
		dir := filepath.Join(root, pid)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		if err := os.Symlink(image, filepath.Join(dir, "exe")); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
		writeFile(t, filepath.Join(dir, "comm"), comm+"\n")
	}
	return root
}

func resetWatchFlags(t *testing.T) {
	t.Helper()
	watchSignaturesPath = ""
	watchHashes = ""
	watchWhitelist = ""
	watchOutputPath = store.MemoryPath
	watchFormat = "human"
	watchColor = "never"
	watchOnce = true
	watchProcRoot = fakeProcRoot(t)
	watchEngine = "automaton"
	watchPrefilter = "exact"
	watchWorkers = 1
}

func TestRunWatchOnce(t *testing.T) {
	resetWatchFlags(t)

	output, _, err := execute(runWatch)
	require.NoError(t, err)

	assert.Contains(t, output, "Detection:")
	assert.Contains(t, output, "pid 4242, miner")
	assert.Contains(t, output, "fdsec.eicar.1")
	assert.NotContains(t, output, "sshd")
}

func TestRunWatchOnceJSON(t *testing.T) {
	resetWatchFlags(t)
	watchFormat = "json"

	output, _, err := execute(runWatch)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 1)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &v))
	assert.Equal(t, "malicious", v["outcome"])
	assert.True(t, strings.HasSuffix(v["target"].(string), "miner"))
}

func TestRunWatchStoresVerdicts(t *testing.T) {
	resetWatchFlags(t)
	watchOutputPath = filepath.Join(t.TempDir(), "watch.db")

	_, _, err := execute(runWatch)
	require.NoError(t, err)
	assert.Len(t, storedVerdicts(t, watchOutputPath), 2)
}

func TestRunWatchUnknownFormat(t *testing.T) {
	resetWatchFlags(t)
	watchFormat = "sarif"

	_, _, err := execute(runWatch)
	assert.Error(t, err)
}
