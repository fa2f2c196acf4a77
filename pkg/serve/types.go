package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/fdsec/pkg/engine"
	"github.com/praetorian-inc/fdsec/pkg/scanner"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"`    // "scan" | "scan_batch" | "info" | "close"
	Payload json.RawMessage `json:"payload"`
}

// ScanPayload is the payload for "scan" requests. Content is base64.
type ScanPayload struct {
	Content []byte `json:"content"`
	Source  string `json:"source"`
}

// ScanBatchPayload is the payload for "scan_batch" requests
type ScanBatchPayload struct {
	Items []scanner.ContentItem `json:"items"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"`              // "ready" | "scan" | "scan_batch" | "info" | request type on error
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
}

// InfoData is the data field for "info" responses
type InfoData struct {
	Version string         `json:"version"`
	Engine  string         `json:"engine"`
	Summary engine.Summary `json:"summary"`
}
