package enum

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// Member is one extracted archive entry.
type Member struct {
	Name    string // path within the archive (e.g., "bin/payload.exe")
	Content []byte
}

// Limits bound archive extraction. Zero values select the defaults.
type Limits struct {
	MaxMemberSize int64 // members larger than this are skipped (default 64 MiB)
	MaxTotalSize  int64 // stop once this many bytes are extracted (default 256 MiB)
	MaxMembers    int   // stop after this many members (default 10000)
}

// DefaultLimits returns the extraction limits used when none are set.
func DefaultLimits() Limits {
	return Limits{
		MaxMemberSize: 64 << 20,
		MaxTotalSize:  256 << 20,
		MaxMembers:    10000,
	}
}

func (l Limits) normalized() Limits {
	d := DefaultLimits()
	if l.MaxMemberSize <= 0 {
		l.MaxMemberSize = d.MaxMemberSize
	}
	if l.MaxTotalSize <= 0 {
		l.MaxTotalSize = d.MaxTotalSize
	}
	if l.MaxMembers <= 0 {
		l.MaxMembers = d.MaxMembers
	}
	return l
}

// ErrUnsupportedArchive is returned for files that are not a known archive.
var ErrUnsupportedArchive = errors.New("unsupported archive type")

// archiveKind maps a file name to the archive kind used by
// Config.ExtractArchives, or "" for non-archives.
func archiveKind(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return "zip"
	case ".jar", ".war", ".ear", ".apk":
		return "jar"
	case ".7z":
		return "7z"
	}
	return ""
}

// entry abstracts over zip and 7z file headers.
type entry struct {
	name string
	dir  bool
	open func() (io.ReadCloser, error)
}

// ExtractMembers reads the regular members of the archive at path. Members
// that cannot be read or exceed the limits are skipped.
func ExtractMembers(path string, limits Limits) ([]Member, error) {
	limits = limits.normalized()

	switch archiveKind(path) {
	case "zip", "jar":
		r, err := zip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open zip %s: %w", path, err)
		}
		defer r.Close()

		entries := make([]entry, len(r.File))
		for i, f := range r.File {
			entries[i] = entry{name: f.Name, dir: f.FileInfo().IsDir(), open: f.Open}
		}
		return readEntries(entries, limits), nil

	case "7z":
		r, err := sevenzip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open 7z %s: %w", path, err)
		}
		defer r.Close()

		entries := make([]entry, len(r.File))
		for i, f := range r.File {
			entries[i] = entry{name: f.Name, dir: f.FileInfo().IsDir(), open: f.Open}
		}
		return readEntries(entries, limits), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArchive, path)
	}
}

func readEntries(entries []entry, limits Limits) []Member {
	var members []Member
	var total int64

	for _, e := range entries {
		if e.dir {
			continue
		}
		if len(members) >= limits.MaxMembers || total >= limits.MaxTotalSize {
			break
		}

		rc, err := e.open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(rc, limits.MaxMemberSize+1))
		rc.Close()
		if err != nil || int64(len(data)) > limits.MaxMemberSize {
			continue
		}

		total += int64(len(data))
		members = append(members, Member{Name: e.name, Content: data})
	}
	return members
}
