// Package enum discovers scan targets: files under a directory, members
// of archives, and the executable images of running processes.
package enum

import (
	"context"

	"go.uber.org/zap"

	"github.com/praetorian-inc/fdsec/pkg/matcher"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

// Target is one scannable object. Content is not read until Open is
// called, so enumerating a large tree stays cheap.
type Target interface {
	Name() string
	Size() int64
	Provenance() types.Provenance
	Open() (matcher.Source, error)
}

// Enumerator discovers targets from a source.
type Enumerator interface {
	// Enumerate calls fn for every target. fn may be called from several
	// goroutines at once.
	Enumerate(ctx context.Context, fn func(Target) error) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration. It may name a single file.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// Exclude holds gitignore-style patterns relative to Root. Patterns in
	// Root/.fdsecignore are added to these.
	Exclude []string

	// ExtractArchives scans archive members as well as the archive itself
	// (comma-separated: zip,jar,7z or 'all').
	ExtractArchives string

	// Limits bound archive extraction.
	Limits Limits

	// ChunkSize is the read size of opened targets (0 = matcher default).
	ChunkSize int

	// Mmap maps files into memory instead of reading them.
	Mmap bool

	// Workers bounds concurrent archive extraction (0 = NumCPU).
	Workers int

	// Logger receives warnings about entries skipped mid-walk (nil = no-op).
	Logger *zap.Logger
}
