package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/fdsec/pkg/feed"
	"github.com/praetorian-inc/fdsec/pkg/rule"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

var (
	signaturesPath   string
	signaturesFormat string
)

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "Manage detection signatures",
	Long:  "Commands for listing and validating signature corpora",
}

var signaturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available signatures",
	Long:  "Display the signatures of the builtin corpus or of a signature file",
	RunE:  runSignaturesList,
}

var signaturesCheckCmd = &cobra.Command{
	Use:   "check <file|url>",
	Short: "Validate a signature corpus",
	Long: `Parse every signature in a corpus and report the ones that are
malformed or contain invalid hex. Exits non-zero when any are found.`,
	Args: cobra.ExactArgs(1),
	RunE: runSignaturesCheck,
}

func init() {
	signaturesCmd.AddCommand(signaturesListCmd)
	signaturesCmd.AddCommand(signaturesCheckCmd)
	signaturesListCmd.Flags().StringVar(&signaturesPath, "signatures", "", "Signature file or http(s) URL (default: builtin)")
	signaturesListCmd.Flags().StringVar(&signaturesFormat, "format", "table", "Output format: table, json")
}

func runSignaturesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sigs, err := loadSignatures(ctx, signaturesPath, "", "")
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}

	switch signaturesFormat {
	case "json":
		return outputSignaturesJSON(cmd, sigs)
	case "table":
		return outputSignaturesTable(cmd, sigs)
	default:
		return fmt.Errorf("unknown output format: %s", signaturesFormat)
	}
}

func runSignaturesCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	location := args[0]
	loader := rule.NewLoader()

	var sigs []*types.Signature
	var problems []string

	if feed.IsRemote(location) {
		lines, err := feed.FetchWithConfig(ctx, location, feedConfig())
		if err != nil {
			return err
		}
		var bad []rule.LoadError
		sigs, bad = loader.FromLines(lines)
		for _, e := range bad {
			problems = append(problems, e.Error())
		}
	} else {
		var bad []rule.LoadError
		var err error
		sigs, bad, err = loader.LoadFile(location)
		if err != nil {
			return err
		}
		for _, e := range bad {
			problems = append(problems, e.Error())
		}
	}
	for _, err := range rule.ValidateCorpus(sigs) {
		problems = append(problems, err.Error())
	}

	out := cmd.OutOrStdout()
	for _, p := range problems {
		fmt.Fprintln(out, p)
	}
	fmt.Fprintf(out, "%d valid, %d problems\n", len(sigs), len(problems))

	if len(problems) > 0 {
		return fmt.Errorf("%s: %d malformed signatures", location, len(problems))
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func outputSignaturesJSON(cmd *cobra.Command, sigs []*types.Signature) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(sigs)
}

func outputSignaturesTable(cmd *cobra.Command, sigs []*types.Signature) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tSeverity\tCategories\n")
	fmt.Fprintf(w, "--\t----\t--------\t----------\n")

	for _, s := range sigs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.DisplayName(), s.Severity, strings.Join(s.Categories, ","))
	}

	return nil
}
