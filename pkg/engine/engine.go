// Package engine runs a corpus of compiled signatures against scan
// targets and produces verdicts.
//
// For each target the engine first consults the configured hash lists,
// then streams the target exactly once: every chunk is fed to every
// undecided signature, sharded across worker goroutines. Scanning stops at
// the first matching signature unless AllMatches is set. A target that
// cannot be read completely gets an inconclusive verdict.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/fdsec/pkg/hashlist"
	"github.com/praetorian-inc/fdsec/pkg/matcher"
	"github.com/praetorian-inc/fdsec/pkg/prefilter"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

// Target is something that can be scanned.
type Target interface {
	// Name identifies the target in verdicts and logs.
	Name() string
	// Provenance says where the target came from.
	Provenance() types.Provenance
	// Open returns a fresh chunk source positioned at the start. The
	// engine closes it if it implements io.Closer.
	Open() (matcher.Source, error)
}

// Config controls engine behavior.
type Config struct {
	// Matcher selects the backend and prefilter mode
	Matcher matcher.Config

	// Chunk controls how targets are read
	Chunk matcher.ChunkConfig

	// Workers bounds signature shards per target and concurrent targets
	// in ScanAll (default: GOMAXPROCS)
	Workers int

	// AllMatches keeps scanning after the first detection
	AllMatches bool

	// Hashes are consulted before pattern matching (optional)
	Hashes *hashlist.Lists

	// Logger receives per-signature and per-target warnings (default: no-op)
	Logger *zap.Logger

	// Cache shares compiled expressions between engines (optional)
	Cache *Cache
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		Matcher: matcher.Config{Backend: matcher.BackendAutomaton, Prefilter: prefilter.ModeExact},
		Chunk:   matcher.DefaultChunkConfig(),
		Workers: runtime.GOMAXPROCS(0),
	}
}

// Engine scans targets against a signature corpus. It is safe for
// concurrent use.
type Engine struct {
	cfg      Config
	programs []*Program
	errs     []*CompileError
	corpus   *prefilter.Prefilter
	cache    *Cache
	ownCache bool
	metrics  *metrics
	log      *zap.Logger
}

// New compiles sigs. Signatures that fail to parse or decode are skipped
// and reported by Errors; New itself never fails.
func New(sigs []*types.Signature, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Chunk.ChunkSize <= 0 {
		cfg.Chunk.ChunkSize = matcher.DefaultChunkConfig().ChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &Engine{
		cfg:     cfg,
		cache:   cfg.Cache,
		metrics: newMetrics(),
		log:     cfg.Logger,
	}
	if e.cache == nil {
		e.cache = NewCache()
		e.ownCache = true
	}

	for _, sig := range sigs {
		c, err := e.cache.Get(sig.Expression, cfg.Matcher)
		if err != nil {
			e.errs = append(e.errs, &CompileError{Signature: sig, Err: err})
			e.log.Warn("skipping signature",
				zap.String("signature", sig.ID),
				zap.Error(err))
			continue
		}
		e.programs = append(e.programs, &Program{Signature: sig, Compiled: c})
	}

	anchors := make([][][]byte, len(e.programs))
	for i, p := range e.programs {
		anchors[i] = p.AnchorBytes()
	}
	e.corpus = prefilter.New(anchors)

	return e
}

// Programs returns the compiled signatures in corpus order.
func (e *Engine) Programs() []*Program {
	return e.programs
}

// Errors returns the signatures that were skipped.
func (e *Engine) Errors() []*CompileError {
	return e.errs
}

// Summary returns corpus statistics.
func (e *Engine) Summary() Summary {
	s := Summary{
		TotalSignatures:    len(e.programs) + len(e.errs),
		CompiledSignatures: len(e.programs),
		FailedSignatures:   len(e.errs),
	}
	seen := make(map[*Compiled]bool)
	for _, p := range e.programs {
		if !seen[p.Compiled] {
			seen[p.Compiled] = true
			s.DistinctPrograms++
			s.DistinctPatterns += p.Registry.Len()
		}
	}
	return s
}

// Close releases compiled matchers if the engine owns its cache.
func (e *Engine) Close() error {
	if e.ownCache {
		return e.cache.Close()
	}
	return nil
}

// SignatureResult is the per-signature detail of one scan.
type SignatureResult struct {
	Program  *Program
	Status   SignatureStatus
	Patterns []string // patterns seen before the scan ended
	Offsets  []int64  // first occurrence of each pattern, parallel to Patterns
	Err      error
}

// Scan produces a verdict for t.
func (e *Engine) Scan(ctx context.Context, t Target) *types.Verdict {
	v, _ := e.ScanDetailed(ctx, t)
	return v
}

// ScanDetailed is Scan plus the status of every signature. The detail is
// nil when the verdict came from a hash list.
func (e *Engine) ScanDetailed(ctx context.Context, t Target) (*types.Verdict, []SignatureResult) {
	start := time.Now()
	v := &types.Verdict{Target: t.Name(), Provenance: t.Provenance()}
	defer func() { e.metrics.record(ctx, v, time.Since(start)) }()

	if !e.cfg.Hashes.Empty() {
		d, n, err := e.digest(t)
		if err != nil {
			e.inconclusive(v, err)
			return v, nil
		}
		v.Digest, v.Size = d, n
		if e.applyHashLists(v) {
			return v, nil
		}
	}

	src, err := t.Open()
	if err != nil {
		e.inconclusive(v, &matcher.SourceError{Err: err})
		return v, nil
	}
	if e.cfg.Chunk.Prefetch > 0 {
		src = matcher.Prefetch(src, e.cfg.Chunk.Prefetch)
	}
	defer matcher.CloseSource(src)

	results := e.scanSource(ctx, src, e.programs, v)
	return v, results
}

// ScanBytes scans an in-memory buffer. Signatures whose anchors do not
// occur in buf are ruled out before streaming.
func (e *Engine) ScanBytes(ctx context.Context, name string, buf []byte) *types.Verdict {
	start := time.Now()
	v := &types.Verdict{
		Target:     name,
		Provenance: types.ExtendedProvenance{Payload: map[string]interface{}{"path": name}},
		Digest:     types.ComputeDigest(buf),
		Size:       int64(len(buf)),
	}
	defer func() { e.metrics.record(ctx, v, time.Since(start)) }()

	if e.applyHashLists(v) {
		return v
	}

	candidates := e.corpus.Filter(buf)
	programs := make([]*Program, len(candidates))
	for i, idx := range candidates {
		programs[i] = e.programs[idx]
	}

	e.scanSource(ctx, matcher.NewBytesSource(buf, e.cfg.Chunk.ChunkSize), programs, v)
	return v
}

// ScanAll scans targets concurrently, at most Workers at a time, and
// calls fn with each verdict. fn is never called concurrently. ScanAll
// returns when every target is done or ctx is cancelled.
func (e *Engine) ScanAll(ctx context.Context, targets <-chan Target, fn func(*types.Verdict)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	var mu sync.Mutex
	for {
		var t Target
		var ok bool
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case t, ok = <-targets:
		}
		if !ok {
			break
		}
		g.Go(func() error {
			v := e.Scan(ctx, t)
			mu.Lock()
			defer mu.Unlock()
			fn(v)
			return nil
		})
	}
	return g.Wait()
}

// applyHashLists records a hash-list verdict and reports whether pattern
// scanning must be skipped.
func (e *Engine) applyHashLists(v *types.Verdict) bool {
	outcome, ok := e.cfg.Hashes.Lookup(v.Digest)
	if !ok {
		return false
	}
	v.Outcome = outcome
	if outcome == types.OutcomeMalicious {
		v.Detections = append(v.Detections, types.Detection{Reason: types.ReasonHash})
	}
	return true
}

func (e *Engine) digest(t Target) (types.Digest, int64, error) {
	src, err := t.Open()
	if err != nil {
		return types.Digest{}, 0, &matcher.SourceError{Err: err}
	}
	defer matcher.CloseSource(src)

	r := &sourceReader{src: src}
	d, n, err := hashlist.Digest(r)
	if err != nil {
		return types.Digest{}, n, &matcher.SourceError{Offset: n, Err: err}
	}
	return d, n, nil
}

func (e *Engine) inconclusive(v *types.Verdict, err error) {
	v.Outcome = types.OutcomeInconclusive
	v.Err = err
	e.log.Warn("scan inconclusive",
		zap.String("target", v.Target),
		zap.Error(err))
}

// sigState tracks one signature's stream during a scan.
type sigState struct {
	prog   *Program
	stream matcher.Stream
	status SignatureStatus
	done   bool
	err    error
}

func (e *Engine) scanSource(ctx context.Context, src matcher.Source, programs []*Program, v *types.Verdict) []SignatureResult {
	states := make([]*sigState, 0, len(programs))
	results := make([]SignatureResult, 0, len(programs))
	for _, p := range programs {
		s, err := p.Matcher.NewStream()
		if err != nil {
			e.log.Warn("skipping signature",
				zap.String("signature", p.Signature.ID),
				zap.Error(err))
			results = append(results, SignatureResult{Program: p, Status: SignatureError, Err: err})
			continue
		}
		states = append(states, &sigState{prog: p, stream: s, status: SignatureSkipped})
	}
	defer func() {
		for _, st := range states {
			_ = st.stream.Close()
		}
	}()

	shards := shard(states, e.cfg.Workers)
	var offset int64
	var readErr error
	exhausted := false

loop:
	for len(states) > 0 {
		if err := ctx.Err(); err != nil {
			readErr = &matcher.SourceError{Offset: offset, Err: err}
			break
		}

		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			exhausted = true
			break
		}
		if err != nil {
			readErr = &matcher.SourceError{Offset: offset, Err: err}
			break
		}
		offset += int64(len(chunk))

		e.feed(shards, chunk)

		open := false
		for _, st := range states {
			if st.status == SignatureMatched && !e.cfg.AllMatches {
				break loop
			}
			if !st.done {
				open = true
			}
		}
		if !open {
			break
		}
	}
	v.BytesScanned = offset

	for _, st := range states {
		if exhausted && !st.done {
			st.status = SignatureClean
		}
		res := SignatureResult{Program: st.prog, Status: st.status, Err: st.err}
		res.Patterns, res.Offsets = st.prog.Locate(st.stream)
		results = append(results, res)

		if st.status == SignatureMatched {
			v.Detections = append(v.Detections, types.Detection{
				Reason:        types.ReasonSignature,
				SignatureID:   st.prog.Signature.ID,
				SignatureName: st.prog.Signature.Name,
				Severity:      st.prog.Signature.Severity,
				Patterns:      res.Patterns,
				Offsets:       res.Offsets,
			})
		}
	}

	switch {
	case readErr != nil:
		e.inconclusive(v, readErr)
	case len(v.Detections) > 0:
		v.Outcome = types.OutcomeMalicious
	default:
		v.Outcome = types.OutcomeClean
	}
	return results
}

// feed writes chunk to every undecided signature, one goroutine per shard.
func (e *Engine) feed(shards [][]*sigState, chunk []byte) {
	if len(shards) == 1 {
		e.feedShard(shards[0], chunk)
		return
	}
	var g errgroup.Group
	for _, sh := range shards {
		g.Go(func() error {
			e.feedShard(sh, chunk)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) feedShard(states []*sigState, chunk []byte) {
	for _, st := range states {
		if st.done {
			continue
		}
		if err := st.stream.Write(chunk); err != nil {
			st.done, st.status, st.err = true, SignatureError, err
			e.log.Warn("signature matcher failed",
				zap.String("signature", st.prog.Signature.ID),
				zap.Error(err))
			continue
		}
		if st.prog.Evaluate(st.stream.Hits()) {
			st.done, st.status = true, SignatureMatched
		}
	}
}

// shard splits states into at most n contiguous groups.
func shard(states []*sigState, n int) [][]*sigState {
	if n < 1 {
		n = 1
	}
	if n > len(states) {
		n = len(states)
	}
	if n <= 1 {
		return [][]*sigState{states}
	}
	size := (len(states) + n - 1) / n
	var out [][]*sigState
	for i := 0; i < len(states); i += size {
		out = append(out, states[i:min(i+size, len(states))])
	}
	return out
}

// sourceReader adapts a Source to io.Reader for hashing.
type sourceReader struct {
	src  matcher.Source
	rest []byte
}

func (r *sourceReader) Read(p []byte) (int, error) {
	for len(r.rest) == 0 {
		chunk, err := r.src.Next()
		if err != nil {
			return 0, err
		}
		r.rest = chunk
	}
	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}

// String describes the engine configuration for logs.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(signatures=%d backend=%s prefilter=%s workers=%d)",
		len(e.programs), e.cfg.Matcher.Backend, e.cfg.Matcher.Prefilter, e.cfg.Workers)
}
