package types

import (
	"encoding/json"
	"fmt"
)

// Outcome is the overall result of scanning one target.
type Outcome int

const (
	// OutcomeClean means every signature was evaluated and none matched.
	OutcomeClean Outcome = iota
	// OutcomeMalicious means a blacklisted digest or a signature matched.
	OutcomeMalicious
	// OutcomeWhitelisted means the digest is trusted and no pattern scan ran.
	OutcomeWhitelisted
	// OutcomeInconclusive means the target could not be read completely.
	// It is neither clean nor malicious.
	OutcomeInconclusive
)

var outcomeNames = map[Outcome]string{
	OutcomeClean:        "clean",
	OutcomeMalicious:    "malicious",
	OutcomeWhitelisted:  "whitelisted",
	OutcomeInconclusive: "inconclusive",
}

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// ParseOutcome is the inverse of String.
func ParseOutcome(s string) (Outcome, error) {
	for o, name := range outcomeNames {
		if name == s {
			return o, nil
		}
	}
	return OutcomeClean, fmt.Errorf("unknown outcome %q", s)
}

// MarshalJSON implements json.Marshaler.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Reason says what produced a Detection.
type Reason string

const (
	ReasonHash      Reason = "hash"
	ReasonSignature Reason = "signature"
)

// Detection is one positive result for a target.
type Detection struct {
	Reason        Reason `json:"reason"`
	SignatureID   string `json:"signature_id,omitempty"`
	SignatureName string `json:"signature_name,omitempty"`
	Severity      string `json:"severity,omitempty"`
	// Patterns lists the hex patterns that were seen when the signature
	// was satisfied.
	Patterns []string `json:"patterns,omitempty"`
	// Offsets holds, per entry of Patterns, the byte offset where that
	// pattern first occurs in the target (-1 if unknown).
	Offsets []int64 `json:"offsets,omitempty"`
}

// PatternOffset returns the first-occurrence offset of Patterns[i], or -1.
func (d Detection) PatternOffset(i int) int64 {
	if i < 0 || i >= len(d.Offsets) {
		return -1
	}
	return d.Offsets[i]
}

// Verdict is the result of scanning one target.
type Verdict struct {
	Target       string      `json:"target"`
	Provenance   Provenance  `json:"-"`
	Digest       Digest      `json:"digest"`
	Size         int64       `json:"size"`
	Outcome      Outcome     `json:"outcome"`
	Detections   []Detection `json:"detections,omitempty"`
	BytesScanned int64       `json:"bytes_scanned"`
	Err          error       `json:"-"`
}

// Malicious reports whether the target should be treated as infected.
func (v *Verdict) Malicious() bool {
	return v.Outcome == OutcomeMalicious
}

// ErrorMessage returns the read error text for inconclusive verdicts.
func (v *Verdict) ErrorMessage() string {
	if v.Err == nil {
		return ""
	}
	return v.Err.Error()
}
