package engine

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/praetorian-inc/fdsec/pkg/matcher"
	"github.com/praetorian-inc/fdsec/pkg/signature"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

// Compiled is everything derived from a signature expression. It depends
// only on the expression text and matcher configuration, never on a scan
// target, so one Compiled is shared by every target and every signature
// with the same expression.
type Compiled struct {
	Tree     *signature.Node
	Registry *signature.Registry
	Patterns [][]byte
	Anchors  []int
	Matcher  matcher.Matcher
}

// CompileExpression parses expr, indexes and decodes its patterns, and
// builds the matcher.
func CompileExpression(expr string, cfg matcher.Config) (*Compiled, error) {
	tree, err := signature.Parse(expr)
	if err != nil {
		return nil, err
	}
	reg := signature.NewRegistry(tree)
	reg.Assign(tree)

	patterns, err := reg.Decode()
	if err != nil {
		return nil, err
	}

	m, err := matcher.New(patterns, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s matcher: %w", cfg.Backend, err)
	}

	return &Compiled{
		Tree:     tree,
		Registry: reg,
		Patterns: patterns,
		Anchors:  signature.Anchors(tree),
		Matcher:  m,
	}, nil
}

// Evaluate reports whether hits satisfy the signature.
func (c *Compiled) Evaluate(hits *bitset.BitSet) bool {
	return signature.Evaluate(c.Tree, hits)
}

// Locate returns the hex text of every pattern s has seen, in index
// order, with the stream offset where its first occurrence starts.
func (c *Compiled) Locate(s matcher.Stream) ([]string, []int64) {
	var (
		patterns []string
		offsets  []int64
	)
	hits := s.Hits()
	for i, p := range c.Registry.Patterns() {
		if !hits.Test(uint(i)) {
			continue
		}
		start := int64(-1)
		if end := s.FirstEnd(i); end >= 0 {
			start = end - int64(len(c.Patterns[i]))
		}
		patterns = append(patterns, p)
		offsets = append(offsets, start)
	}
	return patterns, offsets
}

// AnchorBytes returns the decoded anchor patterns.
func (c *Compiled) AnchorBytes() [][]byte {
	out := make([][]byte, len(c.Anchors))
	for i, idx := range c.Anchors {
		out[i] = c.Patterns[idx]
	}
	return out
}

// Program binds a signature to its compiled form.
type Program struct {
	Signature *types.Signature
	*Compiled
}

// Compile builds a Program without caching.
func Compile(sig *types.Signature, cfg matcher.Config) (*Program, error) {
	c, err := CompileExpression(sig.Expression, cfg)
	if err != nil {
		return nil, err
	}
	return &Program{Signature: sig, Compiled: c}, nil
}

// Match scans src with this program alone, stopping as soon as the
// signature is satisfied.
func (p *Program) Match(src matcher.Source) (bool, error) {
	s, err := p.Matcher.NewStream()
	if err != nil {
		return false, err
	}
	defer s.Close()

	err = matcher.Run(src, s, p.Evaluate)
	return p.Evaluate(s.Hits()), err
}

// CompileError records a signature that was skipped.
type CompileError struct {
	Signature *types.Signature
	Err       error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("signature %s: %v", e.Signature.ID, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}
