package enum

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IgnoreFile is read from the enumeration root when present.
const IgnoreFile = ".fdsecignore"

// FilesystemEnumerator enumerates files from a filesystem directory.
// Binary files are the point of a malware scan, so unlike text-oriented
// walkers nothing is skipped for its content.
type FilesystemEnumerator struct {
	config Config
}

// NewFilesystemEnumerator creates a new filesystem enumerator.
func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	return &FilesystemEnumerator{config: config}
}

type fileEntry struct {
	path string
	size int64
}

// Enumerate collects eligible paths with a sequential walk, then yields
// them from a bounded worker pool so archive expansion runs in parallel.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, fn func(Target) error) error {
	files, err := e.collect(ctx)
	if err != nil {
		return err
	}

	workers := e.config.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return e.yield(gctx, f, fn) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (e *FilesystemEnumerator) collect(ctx context.Context) ([]fileEntry, error) {
	ignore, err := e.loadIgnore()
	if err != nil {
		return nil, err
	}

	root := e.config.Root
	var files []fileEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return e.walkError(path, d, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			if d.IsDir() {
				return nil
			}
		} else if e.skip(ignore, path, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		size, ok := e.regularSize(path, d)
		if !ok {
			return nil
		}
		if limit := e.config.MaxFileSize; limit > 0 && size > limit {
			return nil
		}
		files = append(files, fileEntry{path: path, size: size})
		return nil
	})
	return files, err
}

// walkError decides how an unreadable entry affects the walk. Only a
// failure at the root is fatal; anything below it is logged and skipped.
func (e *FilesystemEnumerator) walkError(path string, d fs.DirEntry, err error) error {
	if path == e.config.Root {
		return err
	}
	e.logger().Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
	if d != nil && d.IsDir() {
		return filepath.SkipDir
	}
	return nil
}

func (e *FilesystemEnumerator) logger() *zap.Logger {
	if e.config.Logger == nil {
		return zap.NewNop()
	}
	return e.config.Logger
}

// skip reports whether a non-root entry is excluded by name or ignore rules.
func (e *FilesystemEnumerator) skip(ignore *gitignore.GitIgnore, path string, d fs.DirEntry) bool {
	if !e.config.IncludeHidden && isHidden(d.Name()) {
		return true
	}
	if ignore == nil {
		return false
	}
	rel, err := filepath.Rel(e.config.Root, path)
	return err == nil && ignore.MatchesPath(rel)
}

// regularSize resolves symlinks when allowed and returns the size of
// regular files only.
func (e *FilesystemEnumerator) regularSize(path string, d fs.DirEntry) (int64, bool) {
	var (
		info fs.FileInfo
		err  error
	)
	if d.Type()&fs.ModeSymlink != 0 {
		if !e.config.FollowSymlinks {
			return 0, false
		}
		info, err = os.Stat(path)
	} else {
		info, err = d.Info()
	}
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), true
}

// yield passes the file and, when enabled, its archive members to fn.
// Archives that fail to open are still scanned as plain files.
func (e *FilesystemEnumerator) yield(ctx context.Context, f fileEntry, fn func(Target) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(&FileTarget{Path: f.path, FileSize: f.size, ChunkSize: e.config.ChunkSize, Mmap: e.config.Mmap}); err != nil {
		return err
	}
	if !shouldExtract(e.config, archiveKind(f.path)) {
		return nil
	}

	members, _ := ExtractMembers(f.path, e.config.Limits)
	for _, m := range members {
		target := &MemberTarget{ArchivePath: f.path, MemberPath: m.Name, Content: m.Content, ChunkSize: e.config.ChunkSize}
		if err := fn(target); err != nil {
			return err
		}
	}
	return nil
}

// loadIgnore combines Config.Exclude with the root's ignore file.
func (e *FilesystemEnumerator) loadIgnore() (*gitignore.GitIgnore, error) {
	lines := append([]string(nil), e.config.Exclude...)

	data, err := os.ReadFile(filepath.Join(e.config.Root, IgnoreFile))
	if err == nil {
		lines = append(lines, strings.Split(string(data), "\n")...)
	}

	if len(lines) == 0 {
		return nil, nil
	}
	return gitignore.CompileIgnoreLines(lines...), nil
}

// shouldExtract reports whether archives of kind are expanded. The
// setting is a comma list of kinds or "all".
func shouldExtract(config Config, kind string) bool {
	want := strings.ToLower(config.ExtractArchives)
	if want == "" || kind == "" {
		return false
	}
	if want == "all" {
		return true
	}
	return slices.ContainsFunc(strings.Split(want, ","), func(k string) bool {
		return strings.TrimSpace(k) == kind
	})
}

// isHidden treats dot-names as hidden, except "." and "..".
func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.' && name != ".."
}
