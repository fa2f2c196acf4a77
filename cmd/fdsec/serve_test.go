package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand_Exists(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"serve"})
	assert.NoError(t, err)
	assert.NotNil(t, cmd)
	assert.Equal(t, "serve", cmd.Name())
}

func TestServeCommand_Integration(t *testing.T) {
	serveSignaturesPath = ""
	serveHashes = ""
	serveWhitelist = ""

	pr, pw := io.Pipe()
	out := &bytes.Buffer{}

	testCmd := &cobra.Command{
		Use:  "serve",
		RunE: runServe,
	}
	testCmd.SetIn(pr)
	testCmd.SetOut(out)
	testCmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() {
		done <- testCmd.Execute()
	}()

	request := fmt.Sprintf(`{"type":"scan","payload":{"source":"upload:1","content":%q}}`,
		base64.StdEncoding.EncodeToString([]byte(eicar)))
	_, err := pw.Write([]byte(request + "\n" + `{"type":"close","payload":{}}` + "\n"))
	require.NoError(t, err)
	pw.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("command did not exit in time")
	}

	assert.Contains(t, out.String(), `"type":"ready"`)
	assert.Contains(t, out.String(), `"outcome":"malicious"`)
}
