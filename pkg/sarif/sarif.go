// Package sarif renders scan verdicts as a SARIF 2.1.0 log.
package sarif

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

const (
	SchemaURI   = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version     = "2.1.0"
	ToolName    = "fdsec"
	ToolVersion = "0.1.0"
)

// HashRuleID identifies results produced by the digest blacklist.
const HashRuleID = "fdsec.hash.blacklist"

type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool        Tool         `json:"tool"`
	Invocations []Invocation `json:"invocations"`
	Artifacts   []Artifact   `json:"artifacts,omitempty"`
	Results     []Result     `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

type Rule struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	ShortDescription Message `json:"shortDescription"`
	HelpURI          string  `json:"helpUri,omitempty"`
}

// Invocation carries one notification per target that could not be read
// completely. ExecutionSuccessful is false when any exist.
type Invocation struct {
	ExecutionSuccessful bool           `json:"executionSuccessful"`
	Notifications       []Notification `json:"toolExecutionNotifications,omitempty"`
}

type Notification struct {
	Level     string     `json:"level"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations,omitempty"`
}

// Artifact describes a scanned target once, however many results point at it.
type Artifact struct {
	Location ArtifactLocation  `json:"location"`
	Length   int64             `json:"length,omitempty"`
	Hashes   map[string]string `json:"hashes,omitempty"`
}

type Result struct {
	RuleID     string         `json:"ruleId"`
	Level      string         `json:"level"`
	Message    Message        `json:"message"`
	Locations  []Location     `json:"locations"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Message struct {
	Text string `json:"text"`
}

type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

// Region is a byte range within the artifact.
type Region struct {
	ByteOffset int64 `json:"byteOffset"`
	ByteLength int64 `json:"byteLength"`
}

type ArtifactLocation struct {
	URI   string `json:"uri"`
	Index *int   `json:"index,omitempty"`
}

// NewReport returns a report with a single empty run.
func NewReport() *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{{
			Tool:        Tool{Driver: Driver{Name: ToolName, Version: ToolVersion, Rules: []Rule{}}},
			Invocations: []Invocation{{ExecutionSuccessful: true}},
			Results:     []Result{},
		}},
	}
}

func (r *Report) run() *Run { return &r.Runs[0] }

// AddRule registers sig as a rule. The first reference becomes the help URI.
func (r *Report) AddRule(sig *types.Signature) {
	rule := Rule{ID: sig.ID, Name: sig.DisplayName(), ShortDescription: Message{Text: sig.Description}}
	if len(sig.References) > 0 {
		rule.HelpURI = sig.References[0]
	}
	r.run().Tool.Driver.Rules = append(r.run().Tool.Driver.Rules, rule)
}

func (r *Report) hasRule(id string) bool {
	for _, rule := range r.run().Tool.Driver.Rules {
		if rule.ID == id {
			return true
		}
	}
	return false
}

// AddVerdict records v. Detections become results; an inconclusive
// verdict becomes an invocation notification. Clean and whitelisted
// verdicts add nothing.
func (r *Report) AddVerdict(v *types.Verdict) {
	run := r.run()
	loc := ArtifactLocation{URI: formatFileURI(v.Target)}

	if v.Outcome == types.OutcomeInconclusive {
		inv := &run.Invocations[0]
		inv.ExecutionSuccessful = false
		inv.Notifications = append(inv.Notifications, Notification{
			Level:     "error",
			Message:   Message{Text: "Target could not be read completely: " + v.ErrorMessage()},
			Locations: []Location{{PhysicalLocation: PhysicalLocation{ArtifactLocation: loc}}},
		})
		return
	}
	if len(v.Detections) == 0 {
		return
	}

	idx := r.artifact(v, loc.URI)
	loc.Index = &idx

	for _, d := range v.Detections {
		res := Result{
			RuleID:    d.SignatureID,
			Level:     Level(d),
			Message:   Message{Text: message(v, d)},
			Locations: locations(loc, d),
		}
		props := map[string]any{}
		if d.Reason == types.ReasonHash {
			res.RuleID = HashRuleID
			if !r.hasRule(HashRuleID) {
				run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, Rule{
					ID:               HashRuleID,
					Name:             "SHA-256 blacklist",
					ShortDescription: Message{Text: "File digest is on the blacklist"},
				})
			}
		}
		if !v.Digest.IsZero() {
			props["sha256"] = v.Digest.Hex()
		}
		if len(d.Patterns) > 0 {
			props["patterns"] = d.Patterns
		}
		if len(props) > 0 {
			res.Properties = props
		}
		run.Results = append(run.Results, res)
	}
}

// locations returns one location per pattern whose first occurrence is
// known, or a single whole-artifact location.
func locations(loc ArtifactLocation, d types.Detection) []Location {
	var out []Location
	for i, p := range d.Patterns {
		off := d.PatternOffset(i)
		if off < 0 {
			continue
		}
		out = append(out, Location{PhysicalLocation: PhysicalLocation{
			ArtifactLocation: loc,
			Region:           &Region{ByteOffset: off, ByteLength: int64(len(p) / 2)},
		}})
	}
	if len(out) == 0 {
		out = []Location{{PhysicalLocation: PhysicalLocation{ArtifactLocation: loc}}}
	}
	return out
}

// artifact returns the index of the artifact for uri, adding it if new.
func (r *Report) artifact(v *types.Verdict, uri string) int {
	run := r.run()
	for i, a := range run.Artifacts {
		if a.Location.URI == uri {
			return i
		}
	}
	a := Artifact{Location: ArtifactLocation{URI: uri}, Length: v.Size}
	if !v.Digest.IsZero() {
		a.Hashes = map[string]string{"sha-256": v.Digest.Hex()}
	}
	run.Artifacts = append(run.Artifacts, a)
	return len(run.Artifacts) - 1
}

// Level maps a detection to a SARIF level. Hash hits and high severity
// signatures are errors; low severity signatures are notes.
func Level(d types.Detection) string {
	if d.Reason == types.ReasonHash {
		return "error"
	}
	switch strings.ToLower(d.Severity) {
	case "critical", "high":
		return "error"
	case "low", "info":
		return "note"
	default:
		return "warning"
	}
}

func message(v *types.Verdict, d types.Detection) string {
	switch {
	case d.Reason == types.ReasonHash:
		return "Blacklisted SHA-256 " + v.Digest.Hex()
	case d.SignatureName != "":
		return d.SignatureName
	default:
		return "Signature " + d.SignatureID + " matched"
	}
}

func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// formatFileURI turns absolute paths into file:// URIs. Relative paths and
// archive member names ("a.zip!inner.exe") only get forward slashes.
func formatFileURI(path string) string {
	p := filepath.ToSlash(path)
	if !filepath.IsAbs(path) {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + p
}
