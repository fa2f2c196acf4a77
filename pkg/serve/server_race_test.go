package serve

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestServer_ScanBatch_DrainOnEOF checks that a scan_batch response is sent
// even when EOF arrives before the main loop picks up the pending request.
func TestServer_ScanBatch_DrainOnEOF(t *testing.T) {
	core := newCore(t)

	request := fmt.Sprintf(`{"type":"scan_batch","payload":{"items":[{"source":"s1","content":%q},{"source":"s2","content":%q}]}}`,
		b64("test1"), b64(eicar)) + "\n"

	for i := range 10 {
		responses := run(t, core, request)
		require.Len(t, responses, 2, "iteration %d: expected ready + scan_batch response", i)

		assert.True(t, responses[1].Success, "iteration %d: expected success", i)
		assert.Equal(t, "scan_batch", responses[1].Type, "iteration %d: expected scan_batch type", i)
	}
}

func TestServer_MultipleRequestsBeforeEOF(t *testing.T) {
	core := newCore(t)

	var input string
	for i := range 5 {
		input += fmt.Sprintf(`{"type":"scan","payload":{"content":%q,"source":"s%d"}}`, b64("payload"), i) + "\n"
	}

	responses := run(t, core, input)
	require.Len(t, responses, 6)
	for _, resp := range responses[1:] {
		assert.True(t, resp.Success)
		assert.Equal(t, "scan", resp.Type)
	}
}
