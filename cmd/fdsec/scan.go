package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/fdsec/pkg/engine"
	"github.com/praetorian-inc/fdsec/pkg/enum"
	"github.com/praetorian-inc/fdsec/pkg/hashlist"
	"github.com/praetorian-inc/fdsec/pkg/matcher"
	"github.com/praetorian-inc/fdsec/pkg/prefilter"
	"github.com/praetorian-inc/fdsec/pkg/quarantine"
	"github.com/praetorian-inc/fdsec/pkg/store"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

var (
	scanSignaturesPath    string
	scanSignaturesInclude string
	scanSignaturesExclude string
	scanHashes            string
	scanWhitelist         string
	scanOutputPath        string
	scanOutputFormat      string
	scanColor             string
	scanChunkSize         int
	scanWorkers           int
	scanAllMatches        bool
	scanPrefilter         string
	scanEngine            string
	scanMaxFileSize       int64
	scanIncludeHidden     bool
	scanExclude           []string
	scanExtractArchives   string
	scanMmap              bool
	scanIncremental       bool
	scanQuarantine        string
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a file or directory for malware",
	Long: `Scan a file or directory tree against the signature corpus.

Every file is streamed once; binary content is scanned like any other.
Hash lists, when given, are consulted first: whitelisted files are
trusted without a pattern scan and blacklisted files are reported
immediately. Results are stored in the output database for "fdsec report".`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanSignaturesPath, "signatures", "", "Signature file (YAML or one expression per line) or http(s) URL (default: builtin)")
	scanCmd.Flags().StringVar(&scanSignaturesInclude, "signatures-include", "", "Include signatures whose ID matches a regex or category:NAME (comma-separated)")
	scanCmd.Flags().StringVar(&scanSignaturesExclude, "signatures-exclude", "", "Exclude signatures whose ID matches a regex or category:NAME (comma-separated)")
	scanCmd.Flags().StringVar(&scanHashes, "hashes", "", "SHA-256 blacklist file or http(s) URL")
	scanCmd.Flags().StringVar(&scanWhitelist, "whitelist", "", "SHA-256 whitelist file or http(s) URL")
	scanCmd.Flags().StringVar(&scanOutputPath, "output", "fdsec.db", "Output database path")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: human, json, sarif")
	scanCmd.Flags().StringVar(&scanColor, "color", "auto", "Color output: auto, always, never")
	scanCmd.Flags().IntVar(&scanChunkSize, "chunk-size", matcher.DefaultChunkConfig().ChunkSize, "Bytes read per chunk")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Concurrent files and signature shards (0 = GOMAXPROCS)")
	scanCmd.Flags().BoolVar(&scanAllMatches, "all-matches", false, "Report every matching signature instead of stopping at the first")
	scanCmd.Flags().StringVar(&scanPrefilter, "prefilter", "exact", "Skip table mode: exact, rareness (faster, may miss patterns)")
	scanCmd.Flags().StringVar(&scanEngine, "engine", "automaton", "Matching backend: automaton, regexp, hyperscan")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 0, "Maximum file size to scan in bytes (0 = unlimited)")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	scanCmd.Flags().StringSliceVar(&scanExclude, "exclude", nil, "Gitignore-style patterns to skip (repeatable)")
	scanCmd.Flags().StringVar(&scanExtractArchives, "extract-archives", "", "Also scan archive members: zip,jar,7z or all")
	scanCmd.Flags().BoolVar(&scanMmap, "mmap", true, "Memory-map files instead of reading them")
	scanCmd.Flags().BoolVar(&scanIncremental, "incremental", false, "Skip files whose digest is already in the output database")
	scanCmd.Flags().StringVar(&scanQuarantine, "quarantine", "", "Move detected files into this zip archive")
}

// scanTally counts outcomes for the status line.
type scanTally struct {
	total, malicious, inconclusive, quarantined int
	skipped                                     atomic.Int64
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]

	// Validate target exists
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target does not exist: %s", target)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sigs, err := loadSignatures(ctx, scanSignaturesPath, scanSignaturesInclude, scanSignaturesExclude)
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}
	hashes, err := loadHashLists(ctx, scanHashes, scanWhitelist)
	if err != nil {
		return err
	}

	cfg, err := engineConfig(scanEngine, scanPrefilter, scanChunkSize, scanWorkers, scanAllMatches)
	if err != nil {
		return err
	}
	cfg.Hashes = hashes

	e := engine.New(sigs, cfg)
	defer e.Close()
	if len(e.Errors()) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d signatures skipped (run with -v for details)\n", len(e.Errors()))
	}

	s, err := store.New(store.Config{
		Path: scanOutputPath,
	})
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer s.Close()

	for _, sig := range sigs {
		if err := s.AddSignature(sig); err != nil {
			return fmt.Errorf("storing signature: %w", err)
		}
	}

	enumerator := enum.NewFilesystemEnumerator(enum.Config{
		Root:            target,
		IncludeHidden:   scanIncludeHidden,
		MaxFileSize:     scanMaxFileSize,
		Exclude:         scanExclude,
		ExtractArchives: scanExtractArchives,
		Limits:          enum.DefaultLimits(),
		ChunkSize:       cfg.Chunk.ChunkSize,
		Mmap:            scanMmap,
		Workers:         cfg.Workers,
		Logger:          logger,
	})

	var tally scanTally
	var digests sync.Map // target name -> types.Digest, filled when incremental
	var storeErr error

	targets := make(chan engine.Target)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(targets)
		return enumerator.Enumerate(gctx, func(t enum.Target) error {
			if scanIncremental {
				d, ok := targetDigest(t)
				if ok {
					exists, err := s.TargetExists(d)
					if err != nil {
						return fmt.Errorf("checking target: %w", err)
					}
					if exists {
						tally.skipped.Add(1)
						return nil
					}
					digests.Store(t.Name(), d)
				}
			}
			select {
			case targets <- t:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	g.Go(func() error {
		return e.ScanAll(gctx, targets, func(v *types.Verdict) {
			if v.Digest.IsZero() {
				if d, ok := digests.Load(v.Target); ok {
					v.Digest = d.(types.Digest)
				}
			}
			tally.total++
			switch v.Outcome {
			case types.OutcomeMalicious:
				tally.malicious++
				if scanQuarantine != "" && quarantineTarget(v) {
					tally.quarantined++
				}
			case types.OutcomeInconclusive:
				tally.inconclusive++
			}
			if err := s.AddVerdict(v); err != nil && storeErr == nil {
				storeErr = fmt.Errorf("storing verdict: %w", err)
			}
		})
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	if storeErr != nil {
		return storeErr
	}

	// Status goes to stderr for json/sarif to keep stdout pure JSON
	status := cmd.OutOrStdout()
	if scanOutputFormat == "json" || scanOutputFormat == "sarif" {
		status = cmd.ErrOrStderr()
	}
	printScanStatus(status, &tally)

	verdicts, err := s.GetVerdicts()
	if err != nil {
		return fmt.Errorf("retrieving verdicts: %w", err)
	}
	return outputVerdicts(cmd, scanOutputFormat, scanColor, verdicts, sigs)
}

// =============================================================================
// HELPERS
// =============================================================================

// engineConfig builds an engine configuration from command flags.
func engineConfig(backendName, prefilterName string, chunkSize, workers int, allMatches bool) (engine.Config, error) {
	cfg := engine.DefaultConfig()

	backend, err := matcher.ParseBackend(backendName)
	if err != nil {
		return cfg, err
	}
	if backend == matcher.BackendHyperscan && !matcher.HyperscanAvailable() {
		return cfg, fmt.Errorf("hyperscan engine not available: rebuild with -tags hyperscan")
	}
	mode, err := prefilter.ParseMode(prefilterName)
	if err != nil {
		return cfg, err
	}

	cfg.Matcher = matcher.Config{Backend: backend, Prefilter: mode}
	if chunkSize > 0 {
		cfg.Chunk.ChunkSize = chunkSize
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	cfg.AllMatches = allMatches
	cfg.Logger = logger
	return cfg, nil
}

// targetDigest hashes targets whose content can be read cheaply up front.
// Unreadable files report false and are left to the scan to report.
func targetDigest(t enum.Target) (types.Digest, bool) {
	switch t := t.(type) {
	case *enum.FileTarget:
		d, _, err := hashlist.DigestFile(t.Path)
		if err != nil {
			return types.Digest{}, false
		}
		return d, true
	case *enum.MemberTarget:
		return types.ComputeDigest(t.Content), true
	default:
		return types.Digest{}, false
	}
}

// quarantineTarget moves a detected file into the quarantine archive.
// Archive members are left alone; their archive is reported separately.
func quarantineTarget(v *types.Verdict) bool {
	prov, ok := v.Provenance.(types.FileProvenance)
	if !ok {
		return false
	}
	if err := quarantine.Quarantine(scanQuarantine, prov.FilePath); err != nil {
		logger.Error("quarantine failed",
			zap.String("target", prov.FilePath),
			zap.Error(err))
		return false
	}
	logger.Info("quarantined", zap.String("target", prov.FilePath), zap.String("archive", scanQuarantine))
	return true
}

func printScanStatus(w io.Writer, t *scanTally) {
	fmt.Fprintf(w, "Scan complete: %d targets, %d malicious, %d inconclusive", t.total, t.malicious, t.inconclusive)
	if n := t.skipped.Load(); n > 0 {
		fmt.Fprintf(w, " (%d already scanned)", n)
	}
	if t.quarantined > 0 {
		fmt.Fprintf(w, ", %d quarantined", t.quarantined)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Results stored in: %s\n", scanOutputPath)
}
