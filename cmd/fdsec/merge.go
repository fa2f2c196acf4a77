package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/fdsec/pkg/store"
)

var (
	mergeOutput string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source1.db> <source2.db> [source3.db...]",
	Short: "Merge multiple fdsec databases",
	Long: `Merge multiple fdsec scan databases into a single output database.

This is useful for combining results collected on several hosts.
Signatures, targets and provenance are deduplicated; verdicts from
every source are kept.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output database path")
}

func runMerge(cmd *cobra.Command, args []string) error {
	stats, err := store.Merge(store.MergeConfig{
		SourcePaths: args,
		DestPath:    mergeOutput,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merge complete:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  Sources processed: %d\n", stats.SourcesProcessed)
	fmt.Fprintf(cmd.OutOrStdout(), "  Signatures merged: %d\n", stats.SignaturesMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Targets merged: %d\n", stats.TargetsMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Provenance merged: %d\n", stats.ProvenanceMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Verdicts merged: %d\n", stats.VerdictsMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Detections merged: %d\n", stats.DetectionsMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", mergeOutput)

	return nil
}
