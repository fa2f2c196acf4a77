package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/fdsec/pkg/sarif"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

// styles holds color formatters for human output
type styles struct {
	heading   *color.Color
	id        *color.Color
	signature *color.Color
	label     *color.Color
	pattern   *color.Color
	metadata  *color.Color
	warning   *color.Color
}

// newStyles creates color formatters for report output
// enabled=false respects --color=never and NO_COLOR
func newStyles(enabled bool) *styles {
	s := &styles{
		heading:   color.New(color.Bold, color.FgHiRed),
		id:        color.New(color.FgHiGreen),
		signature: color.New(color.Bold, color.FgHiBlue),
		label:     color.New(color.Bold),
		pattern:   color.New(color.FgYellow),
		metadata:  color.New(color.FgHiBlue),
		warning:   color.New(color.FgHiYellow),
	}

	if !enabled {
		for _, c := range []*color.Color{s.heading, s.id, s.signature, s.label, s.pattern, s.metadata, s.warning} {
			c.DisableColor()
		}
	}

	return s
}

// colorEnabled resolves --color: always, never or auto (TTY and no NO_COLOR).
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

// verdictJSON adds the read error, which Verdict does not serialize.
type verdictJSON struct {
	*types.Verdict
	Error string `json:"error,omitempty"`
}

// outputVerdicts renders verdicts in the requested format. sigs feed the
// SARIF rule table.
func outputVerdicts(cmd *cobra.Command, format, colorMode string, verdicts []*types.Verdict, sigs []*types.Signature) error {
	switch format {
	case "json":
		return outputVerdictsJSON(cmd.OutOrStdout(), verdicts)
	case "sarif":
		return outputSARIF(cmd.OutOrStdout(), verdicts, sigs)
	case "human":
		outputVerdictsHuman(cmd.OutOrStdout(), verdicts, newStyles(colorEnabled(colorMode)))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func outputVerdictsJSON(w io.Writer, verdicts []*types.Verdict) error {
	out := make([]verdictJSON, len(verdicts))
	for i, v := range verdicts {
		out[i] = verdictJSON{Verdict: v, Error: v.ErrorMessage()}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// outputSARIF outputs detections in SARIF 2.1.0 format
func outputSARIF(w io.Writer, verdicts []*types.Verdict, sigs []*types.Signature) error {
	report := sarif.NewReport()
	for _, sig := range sigs {
		report.AddRule(sig)
	}
	for _, v := range verdicts {
		report.AddVerdict(v)
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := w.Write(jsonBytes); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}

// outputVerdictsHuman prints malicious and inconclusive verdicts, then
// a one-line tally.
func outputVerdictsHuman(w io.Writer, verdicts []*types.Verdict, s *styles) {
	var detected, inconclusive []*types.Verdict
	clean, whitelisted := 0, 0
	for _, v := range verdicts {
		switch v.Outcome {
		case types.OutcomeMalicious:
			detected = append(detected, v)
		case types.OutcomeInconclusive:
			inconclusive = append(inconclusive, v)
		case types.OutcomeWhitelisted:
			whitelisted++
		default:
			clean++
		}
	}

	for i, v := range detected {
		fmt.Fprintf(w, "%s", s.heading.Sprintf("Detection %d/%d", i+1, len(detected)))
		if !v.Digest.IsZero() {
			fmt.Fprintf(w, " (%s %s)", s.label.Sprint("sha256"), s.id.Sprint(v.Digest.Hex()))
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n", s.label.Sprint("Target:"), s.metadata.Sprint(v.Target))

		for _, d := range v.Detections {
			fmt.Fprintf(w, "%s %s\n", s.label.Sprint("Signature:"), s.signature.Sprint(describe(d)))
			if len(d.Patterns) > 0 {
				fmt.Fprintf(w, "    %s %s\n", s.label.Sprint("Patterns:"), s.pattern.Sprint(strings.Join(located(d), " ")))
			}
		}
		fmt.Fprintln(w)
	}

	for _, v := range inconclusive {
		fmt.Fprintf(w, "%s %s: %s\n", s.warning.Sprint("Inconclusive:"), v.Target, v.ErrorMessage())
	}

	if len(detected) == 0 && len(inconclusive) == 0 {
		fmt.Fprintf(w, "No detections.\n")
	}
	fmt.Fprintf(w, "%d scanned: %d malicious, %d clean, %d whitelisted, %d inconclusive\n",
		len(verdicts), len(detected), clean, whitelisted, len(inconclusive))
}

// located renders each pattern with its first offset, e.g. "4D5A@0x10".
func located(d types.Detection) []string {
	out := make([]string, len(d.Patterns))
	for i, p := range d.Patterns {
		out[i] = p
		if off := d.PatternOffset(i); off >= 0 {
			out[i] = fmt.Sprintf("%s@%#x", p, off)
		}
	}
	return out
}

func describe(d types.Detection) string {
	if d.Reason == types.ReasonHash {
		return "SHA-256 blacklist"
	}
	text := d.SignatureID
	if d.SignatureName != "" && d.SignatureName != d.SignatureID {
		text = fmt.Sprintf("%s (%s)", d.SignatureName, d.SignatureID)
	}
	if d.Severity != "" {
		text += " [" + d.Severity + "]"
	}
	return text
}
