package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/praetorian-inc/fdsec/pkg/engine"
	"github.com/praetorian-inc/fdsec/pkg/enum"
	"github.com/praetorian-inc/fdsec/pkg/store"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

var (
	watchSignaturesPath string
	watchHashes         string
	watchWhitelist      string
	watchOutputPath     string
	watchFormat         string
	watchColor          string
	watchInterval       time.Duration
	watchOnce           bool
	watchProcRoot       string
	watchEngine         string
	watchPrefilter      string
	watchWorkers        int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan the executable images of running processes",
	Long: `Poll the process table and scan the executable image of every
process once. New processes are picked up on each poll until interrupted.
Detections are reported; processes are never terminated.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSignaturesPath, "signatures", "", "Signature file or http(s) URL (default: builtin)")
	watchCmd.Flags().StringVar(&watchHashes, "hashes", "", "SHA-256 blacklist file or http(s) URL")
	watchCmd.Flags().StringVar(&watchWhitelist, "whitelist", "", "SHA-256 whitelist file or http(s) URL")
	watchCmd.Flags().StringVar(&watchOutputPath, "output", store.MemoryPath, "Output database path")
	watchCmd.Flags().StringVar(&watchFormat, "format", "human", "Output format per detection: human, json")
	watchCmd.Flags().StringVar(&watchColor, "color", "auto", "Color output: auto, always, never")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 250*time.Millisecond, "Polling interval")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Scan the current processes once and exit")
	watchCmd.Flags().StringVar(&watchProcRoot, "proc", "/proc", "procfs mount point")
	watchCmd.Flags().StringVar(&watchEngine, "engine", "automaton", "Matching backend: automaton, regexp, hyperscan")
	watchCmd.Flags().StringVar(&watchPrefilter, "prefilter", "exact", "Skip table mode: exact, rareness")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 0, "Signature shards per image (0 = GOMAXPROCS)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchFormat != "human" && watchFormat != "json" {
		return fmt.Errorf("unknown output format: %s", watchFormat)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sigs, err := loadSignatures(ctx, watchSignaturesPath, "", "")
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}
	hashes, err := loadHashLists(ctx, watchHashes, watchWhitelist)
	if err != nil {
		return err
	}
	cfg, err := engineConfig(watchEngine, watchPrefilter, 0, watchWorkers, false)
	if err != nil {
		return err
	}
	cfg.Hashes = hashes

	e := engine.New(sigs, cfg)
	defer e.Close()

	s, err := store.New(store.Config{Path: watchOutputPath})
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer s.Close()

	styles := newStyles(colorEnabled(watchColor))
	out := cmd.OutOrStdout()
	encoder := json.NewEncoder(out)

	procs := enum.NewProcessEnumerator(watchProcRoot, cfg.Chunk.ChunkSize)
	handle := func(t enum.Target) error {
		v := e.Scan(ctx, t)
		if err := s.AddVerdict(v); err != nil {
			return fmt.Errorf("storing verdict: %w", err)
		}
		switch v.Outcome {
		case types.OutcomeMalicious:
			if watchFormat == "json" {
				return encoder.Encode(verdictJSON{Verdict: v})
			}
			reportProcess(cmd, styles, v)
		case types.OutcomeInconclusive:
			// Short-lived processes routinely exit mid-scan.
			logger.Debug("image not scanned", zap.String("target", v.Target), zap.Error(v.Err))
			if p, ok := t.(*enum.ProcessTarget); ok {
				procs.Forget(p.ImagePath)
			}
		}
		return nil
	}

	if watchOnce {
		return procs.Enumerate(ctx, handle)
	}

	logger.Info("watching processes", zap.Duration("interval", watchInterval))
	err = procs.Watch(ctx, watchInterval, handle)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func reportProcess(cmd *cobra.Command, s *styles, v *types.Verdict) {
	out := cmd.OutOrStdout()
	label := v.Target
	if p, ok := v.Provenance.(types.ProcessProvenance); ok {
		label = fmt.Sprintf("%s (pid %d, %s)", p.ImagePath, p.PID, p.Name)
	}
	fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("Detection:"), s.metadata.Sprint(label))
	for _, d := range v.Detections {
		fmt.Fprintf(out, "    %s %s\n", s.label.Sprint("Signature:"), s.signature.Sprint(describe(d)))
	}
}
