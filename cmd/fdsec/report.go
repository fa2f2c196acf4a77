package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/fdsec/pkg/rule"
	"github.com/praetorian-inc/fdsec/pkg/store"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

var (
	reportDatastore string
	reportFormat    string
	reportColor     string
	reportAll       bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from scan results",
	Long:  "Read verdicts from a scan database and output them",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatastore, "datastore", "fdsec.db", "Path to scan database")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().BoolVar(&reportAll, "all", false, "Include clean and whitelisted verdicts in json output")
}

func runReport(cmd *cobra.Command, args []string) error {
	storePath := reportDatastore

	// Check if it's :memory: (invalid for report)
	if storePath == store.MemoryPath {
		return fmt.Errorf("cannot report from in-memory store")
	}
	if _, err := os.Stat(storePath); err != nil {
		return fmt.Errorf("datastore not found: %s", storePath)
	}

	s, err := store.New(store.Config{
		Path: storePath,
	})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer s.Close()

	verdicts, err := s.GetVerdicts()
	if err != nil {
		return fmt.Errorf("retrieving verdicts: %w", err)
	}
	if reportFormat == "json" && !reportAll {
		verdicts = notable(verdicts)
	}

	// Rule metadata for SARIF comes from the builtin corpus; stored
	// detections carry their own names and severities.
	var sigs []*types.Signature
	if reportFormat == "sarif" {
		sigs, err = rule.NewLoader().LoadBuiltin()
		if err != nil {
			return fmt.Errorf("loading signatures: %w", err)
		}
	}

	return outputVerdicts(cmd, reportFormat, reportColor, verdicts, sigs)
}

// notable keeps malicious and inconclusive verdicts.
func notable(verdicts []*types.Verdict) []*types.Verdict {
	out := verdicts[:0:0]
	for _, v := range verdicts {
		if v.Outcome == types.OutcomeMalicious || v.Outcome == types.OutcomeInconclusive {
			out = append(out, v)
		}
	}
	return out
}
