// Package rule loads signature corpora: the line format (one expression
// per line), the YAML format, and the built-in corpus compiled into the
// binary.
package rule

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

// maxLineSize bounds a single line-format signature.
const maxLineSize = 16 * 1024 * 1024

// LoadError reports a corpus entry that was skipped.
type LoadError struct {
	Line int    // 1-based line number, 0 for YAML entries
	ID   string // signature ID, if known
	Text string // offending text
	Err  error
}

func (e LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("signature %s: %v", e.ID, e.Err)
}

func (e LoadError) Unwrap() error {
	return e.Err
}

// Loader handles loading signature corpora.
type Loader struct {
	fs fs.FS // embedded filesystem for built-in signatures
}

// NewLoader creates a loader with built-in signatures from the embedded
// filesystem.
func NewLoader() *Loader {
	return &Loader{
		fs: builtinSignaturesFS,
	}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// FromLines builds signatures from line-format text. Blank lines and lines
// starting with '#' are ignored. Each remaining line becomes a signature
// with ID "line.<n>". Lines that do not parse or decode are reported and
// skipped; they never abort the load.
func (l *Loader) FromLines(lines []string) ([]*types.Signature, []LoadError) {
	var sigs []*types.Signature
	var errs []LoadError

	for i, line := range lines {
		expr := strings.TrimSpace(line)
		if expr == "" || strings.HasPrefix(expr, "#") {
			continue
		}
		n := i + 1
		if err := Check(expr); err != nil {
			errs = append(errs, LoadError{Line: n, Text: expr, Err: err})
			continue
		}
		sig := &types.Signature{
			ID:         fmt.Sprintf("line.%d", n),
			Expression: expr,
		}
		sig.StructuralID = sig.ComputeStructuralID()
		sigs = append(sigs, sig)
	}
	return sigs, errs
}

// LoadLines reads a line-format corpus from r.
func (l *Loader) LoadLines(r io.Reader) ([]*types.Signature, []LoadError, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, nil, err
	}
	sigs, errs := l.FromLines(lines)
	return sigs, errs, nil
}

// LoadYAML parses a YAML corpus. Entries without an ID or with an invalid
// expression are reported and skipped.
func (l *Loader) LoadYAML(data []byte) ([]*types.Signature, []LoadError, error) {
	var file yamlSignaturesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Signatures) == 0 {
		return nil, nil, fmt.Errorf("no signatures found in YAML")
	}

	var sigs []*types.Signature
	var errs []LoadError
	for _, ys := range file.Signatures {
		sig := convertYAMLSignature(ys)
		if err := ValidateSignature(sig); err != nil {
			errs = append(errs, LoadError{ID: sig.ID, Text: sig.Expression, Err: err})
			continue
		}
		sigs = append(sigs, sig)
	}
	return sigs, errs, nil
}

// LoadFile loads a corpus from path. Files ending in .yml or .yaml are
// parsed as YAML; anything else is the line format.
func (l *Loader) LoadFile(path string) ([]*types.Signature, []LoadError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if IsYAML(path) {
		return l.LoadYAML(data)
	}
	return l.LoadLines(bytes.NewReader(data))
}

// LoadBuiltin loads all built-in signatures from the embedded filesystem.
func (l *Loader) LoadBuiltin() ([]*types.Signature, error) {
	var sigs []*types.Signature

	err := fs.WalkDir(l.fs, "signatures", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsYAML(path) {
			return nil
		}

		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		loaded, errs, err := l.LoadYAML(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if len(errs) > 0 {
			return fmt.Errorf("invalid built-in signature in %s: %w", path, errs[0])
		}
		sigs = append(sigs, loaded...)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return sigs, nil
}

// IsYAML reports whether path names a YAML corpus.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

// convertYAMLSignature converts yamlSignature to types.Signature and
// computes StructuralID.
func convertYAMLSignature(ys yamlSignature) *types.Signature {
	s := &types.Signature{
		ID:          ys.ID,
		Name:        ys.Name,
		Expression:  strings.TrimSpace(ys.Expression),
		Severity:    ys.Severity,
		Description: strings.TrimSpace(ys.Description),
		References:  ys.References,
		Categories:  ys.Categories,
	}
	s.StructuralID = s.ComputeStructuralID()
	return s
}

func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read signatures: %w", err)
	}
	return lines, nil
}
