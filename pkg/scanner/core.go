// Package scanner is the in-memory scanning core behind serve mode and
// library callers that hold content rather than files.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/praetorian-inc/fdsec/pkg/engine"
	"github.com/praetorian-inc/fdsec/pkg/rule"
	"github.com/praetorian-inc/fdsec/pkg/store"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

var (
	// cachedBuiltinSignatures holds builtin signatures loaded once per process
	cachedBuiltinSignatures []*types.Signature
	cachedSignaturesErr     error
	cacheOnce               sync.Once
)

// loadBuiltinSignaturesCached loads builtin signatures once and caches them
func loadBuiltinSignaturesCached() ([]*types.Signature, error) {
	cacheOnce.Do(func() {
		cachedBuiltinSignatures, cachedSignaturesErr = rule.NewLoader().LoadBuiltin()
	})
	return cachedBuiltinSignatures, cachedSignaturesErr
}

// Core wraps the engine and store for scanning operations
type Core struct {
	engine *engine.Engine
	store  store.Store
	logger *zap.Logger
}

// NewCore creates a new Core with the given signatures.
// signaturesJSON can be:
// - "" or "builtin" to load builtin signatures (cached)
// - a JSON array of signatures ({"id": ..., "expression": ...})
func NewCore(signaturesJSON string, cfg engine.Config) (*Core, error) {
	var sigs []*types.Signature
	if signaturesJSON == "" || signaturesJSON == "builtin" {
		var err error
		sigs, err = loadBuiltinSignaturesCached()
		if err != nil {
			return nil, fmt.Errorf("loading builtin signatures: %w", err)
		}
	} else {
		if err := json.Unmarshal([]byte(signaturesJSON), &sigs); err != nil {
			return nil, fmt.Errorf("parsing signatures: %w", err)
		}
	}
	return NewCoreWithSignatures(sigs, cfg), nil
}

// NewCoreWithSignatures creates a Core over an already loaded corpus.
func NewCoreWithSignatures(sigs []*types.Signature, cfg engine.Config) *Core {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("signatures loaded", zap.Int("count", len(sigs)))

	cfg.Logger = logger
	return &Core{
		engine: engine.New(sigs, cfg),
		store:  store.NewMemory(),
		logger: logger,
	}
}

// Engine returns the underlying engine.
func (c *Core) Engine() *engine.Engine {
	return c.engine
}

// Scan scans a single content buffer
func (c *Core) Scan(ctx context.Context, content []byte, source string) (*ScanResult, error) {
	v := c.engine.ScanBytes(ctx, source, content)
	if err := c.store.AddVerdict(v); err != nil {
		return nil, err
	}
	return newScanResult(source, v), nil
}

// ScanBatch scans multiple content items
func (c *Core) ScanBatch(ctx context.Context, items []ContentItem) (*BatchScanResult, error) {
	results := make([]ScanResult, 0, len(items))
	total := 0

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := c.Scan(ctx, item.Content, item.Source)
		if err != nil {
			// Skip items that fail to record
			c.logger.Warn("scan failed", zap.String("source", item.Source), zap.Error(err))
			continue
		}
		results = append(results, *r)
		if r.Verdict.Malicious() {
			total++
		}
	}

	return &BatchScanResult{
		Results:   results,
		Malicious: total,
	}, nil
}

// Verdicts returns every verdict produced so far.
func (c *Core) Verdicts() ([]*types.Verdict, error) {
	return c.store.GetVerdicts()
}

// Close releases scanner resources
func (c *Core) Close() {
	if c.engine != nil {
		c.engine.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// GetBuiltinSignatures returns the built-in signatures (cached)
func GetBuiltinSignatures() ([]*types.Signature, error) {
	return loadBuiltinSignaturesCached()
}
