package scanner

import "github.com/praetorian-inc/fdsec/pkg/types"

// ContentItem represents a content item to scan. Content is base64 in JSON.
type ContentItem struct {
	Source   string            `json:"source"`   // e.g., "upload:42", "mail:attachment:1"
	Content  []byte            `json:"content"`  // the bytes to scan
	Metadata map[string]string `json:"metadata"` // optional metadata
}

// ScanResult represents the verdict for a single item
type ScanResult struct {
	Source  string         `json:"source"`
	Verdict *types.Verdict `json:"verdict"`
	Error   string         `json:"error,omitempty"` // read error for inconclusive verdicts
}

func newScanResult(source string, v *types.Verdict) *ScanResult {
	return &ScanResult{Source: source, Verdict: v, Error: v.ErrorMessage()}
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results   []ScanResult `json:"results"`
	Malicious int          `json:"malicious"`
}
