// Package fdsec provides a signature-based malware detection library.
//
// Signatures are boolean expressions over hex byte patterns, for example
// "4D5A AND (DEADBEEF OR CAFEBABE)". Each target is streamed once through
// an Aho-Corasick automaton per signature, so files of any size are
// scanned in bounded memory.
//
// # Basic Usage
//
// Create a scanner with builtin signatures and scan content:
//
//	scanner, err := fdsec.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	verdict, err := scanner.ScanFile(ctx, "/tmp/download.exe")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if verdict.Malicious() {
//	    fmt.Printf("%s: %s\n", verdict.Target, verdict.Detections[0].SignatureID)
//	}
//
// # With Hash Lists
//
// Known digests are classified before any pattern matching:
//
//	black, _, err := hashlist.LoadFile("blacklist.txt")
//	scanner, err := fdsec.NewScanner(fdsec.WithHashLists(black, nil))
package fdsec

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/praetorian-inc/fdsec/pkg/engine"
	"github.com/praetorian-inc/fdsec/pkg/enum"
	"github.com/praetorian-inc/fdsec/pkg/hashlist"
	"github.com/praetorian-inc/fdsec/pkg/matcher"
	"github.com/praetorian-inc/fdsec/pkg/prefilter"
	"github.com/praetorian-inc/fdsec/pkg/rule"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

// Re-export commonly used types for convenience.
type (
	// Signature is one detection expression with its metadata.
	Signature = types.Signature

	// Verdict is the result of scanning one target.
	Verdict = types.Verdict

	// Detection is one positive result within a verdict.
	Detection = types.Detection

	// Outcome is clean, malicious, whitelisted or inconclusive.
	Outcome = types.Outcome
)

// Re-export outcome constants.
const (
	OutcomeClean        = types.OutcomeClean
	OutcomeMalicious    = types.OutcomeMalicious
	OutcomeWhitelisted  = types.OutcomeWhitelisted
	OutcomeInconclusive = types.OutcomeInconclusive
)

// Scanner provides malware detection over bytes, readers and files.
type Scanner struct {
	engine *engine.Engine
	config *scannerConfig
	mu     sync.RWMutex
}

// scannerConfig holds scanner configuration.
type scannerConfig struct {
	signatures []*types.Signature
	hashes     *hashlist.Lists
	chunkSize  int
	workers    int
	prefilter  prefilter.Mode
	backend    matcher.Backend
	allMatches bool
	logger     *zap.Logger
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithSignatures uses custom signatures instead of the builtin corpus.
func WithSignatures(sigs []*Signature) Option {
	return func(c *scannerConfig) {
		c.signatures = sigs
	}
}

// WithHashLists consults SHA-256 lists before pattern matching. Either
// set may be nil. A digest on the whitelist is never reported.
func WithHashLists(blacklist, whitelist *hashlist.Set) Option {
	return func(c *scannerConfig) {
		c.hashes = &hashlist.Lists{Blacklist: blacklist, Whitelist: whitelist}
	}
}

// WithChunkSize sets the streaming chunk size in bytes. Default is 4 MiB.
func WithChunkSize(n int) Option {
	return func(c *scannerConfig) {
		c.chunkSize = n
	}
}

// WithWorkers bounds the goroutines that evaluate signatures for one
// target. Default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *scannerConfig) {
		c.workers = n
	}
}

// WithPrefilterMode selects the skip table mode. ModeRareness is faster
// and can miss patterns made of common bytes.
func WithPrefilterMode(m prefilter.Mode) Option {
	return func(c *scannerConfig) {
		c.prefilter = m
	}
}

// WithBackend selects the matching backend.
func WithBackend(b matcher.Backend) Option {
	return func(c *scannerConfig) {
		c.backend = b
	}
}

// WithAllMatches keeps scanning after the first detection so the
// verdict lists every matching signature.
func WithAllMatches() Option {
	return func(c *scannerConfig) {
		c.allMatches = true
	}
}

// WithLogger routes warnings about skipped signatures and unreadable
// targets to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *scannerConfig) {
		c.logger = logger
	}
}

// NewScanner creates a new Scanner with the given options.
//
// By default, the scanner:
//   - Uses the builtin signature corpus
//   - Streams 4 MiB chunks with the exact (lossless) prefilter
//   - Stops at the first matching signature
//
// Signatures that fail to parse are skipped; see SkippedSignatures.
func NewScanner(opts ...Option) (*Scanner, error) {
	defaults := engine.DefaultConfig()
	config := &scannerConfig{
		chunkSize: defaults.Chunk.ChunkSize,
		workers:   defaults.Workers,
		prefilter: prefilter.ModeExact,
		backend:   matcher.BackendAutomaton,
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.signatures == nil {
		sigs, err := LoadBuiltinSignatures()
		if err != nil {
			return nil, fmt.Errorf("loading builtin signatures: %w", err)
		}
		config.signatures = sigs
	}
	if config.backend == matcher.BackendHyperscan && !matcher.HyperscanAvailable() {
		return nil, fmt.Errorf("hyperscan backend not available in this build")
	}

	cfg := defaults
	cfg.Matcher = matcher.Config{Backend: config.backend, Prefilter: config.prefilter}
	cfg.Chunk.ChunkSize = config.chunkSize
	cfg.Workers = config.workers
	cfg.AllMatches = config.allMatches
	cfg.Hashes = config.hashes
	cfg.Logger = config.logger

	return &Scanner{
		engine: engine.New(config.signatures, cfg),
		config: config,
	}, nil
}

// ScanBytes scans an in-memory buffer. name labels the verdict.
func (s *Scanner) ScanBytes(ctx context.Context, name string, content []byte) *Verdict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.ScanBytes(ctx, name, content)
}

// ScanReader streams r through the scanner. A read error yields an
// inconclusive verdict. When hash lists are configured the reader is
// consumed for the digest first, so r must then implement io.Seeker.
func (s *Scanner) ScanReader(ctx context.Context, name string, r io.Reader) (*Verdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.config.hashes.Empty() {
		if _, ok := r.(io.Seeker); !ok {
			return nil, fmt.Errorf("hash lists require a seekable reader")
		}
	}
	t := &readerTarget{name: name, r: r, chunk: s.config.chunkSize}
	return s.engine.Scan(ctx, t), nil
}

// ScanFile streams the file at path through the scanner.
//
// Example:
//
//	verdict, err := scanner.ScanFile(ctx, "/path/to/sample.bin")
func (s *Scanner) ScanFile(ctx context.Context, path string) (*Verdict, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t := &enum.FileTarget{Path: path, FileSize: info.Size(), ChunkSize: s.config.chunkSize, Mmap: true}
	return s.engine.Scan(ctx, t), nil
}

// Close releases scanner resources.
// Always call Close when done with the scanner.
func (s *Scanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return s.engine.Close()
	}
	return nil
}

// SignatureCount returns the number of signatures ready to scan.
func (s *Scanner) SignatureCount() int {
	return len(s.engine.Programs())
}

// SkippedSignatures returns the signatures that failed to compile.
func (s *Scanner) SkippedSignatures() []*engine.CompileError {
	return s.engine.Errors()
}

// Signatures returns a copy of the configured signatures, including
// skipped ones.
func (s *Scanner) Signatures() []*Signature {
	sigs := make([]*Signature, len(s.config.signatures))
	copy(sigs, s.config.signatures)
	return sigs
}

// LoadSignaturesFromFile loads signatures from a YAML file or a
// line-per-signature text file. Malformed lines are returned alongside
// the good signatures.
//
// Example:
//
//	sigs, bad, err := fdsec.LoadSignaturesFromFile("/path/to/main.txt")
//	if err != nil {
//	    return err
//	}
//	scanner, err := fdsec.NewScanner(fdsec.WithSignatures(sigs))
func LoadSignaturesFromFile(path string) ([]*Signature, []rule.LoadError, error) {
	return rule.NewLoader().LoadFile(path)
}

// LoadBuiltinSignatures returns the embedded signature corpus.
func LoadBuiltinSignatures() ([]*Signature, error) {
	return rule.NewLoader().LoadBuiltin()
}

// readerTarget adapts an io.Reader to engine.Target.
type readerTarget struct {
	name   string
	r      io.Reader
	chunk  int
	opened bool
}

func (t *readerTarget) Name() string { return t.name }

func (t *readerTarget) Provenance() types.Provenance {
	return types.ExtendedProvenance{Payload: map[string]any{"kind": "reader", "path": t.name}}
}

// Open rewinds seekable readers; a plain reader can be opened once.
func (t *readerTarget) Open() (matcher.Source, error) {
	if t.opened {
		seeker, ok := t.r.(io.Seeker)
		if !ok {
			return nil, fmt.Errorf("reader %s cannot be reopened", t.name)
		}
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}
	t.opened = true
	return matcher.NewReaderSource(io.NopCloser(t.r), t.chunk), nil
}
