package types

import "fmt"

// Provenance tracks where a scan target was discovered.
type Provenance interface {
	Kind() string
	// Path returns displayable path (if applicable)
	Path() string
}

// FileProvenance for filesystem files.
type FileProvenance struct {
	FilePath string
}

// Kind returns "file".
func (f FileProvenance) Kind() string {
	return "file"
}

// Path returns the file path.
func (f FileProvenance) Path() string {
	return f.FilePath
}

// ProcessProvenance for the executable image of a running process.
type ProcessProvenance struct {
	PID       int
	Name      string // process name as reported by the OS
	ImagePath string // path to the executable backing the process
}

// Kind returns "process".
func (p ProcessProvenance) Kind() string {
	return "process"
}

// Path returns the image path.
func (p ProcessProvenance) Path() string {
	return p.ImagePath
}

// ArchiveProvenance tracks content extracted from archives.
type ArchiveProvenance struct {
	ArchivePath string // path to the archive file
	MemberPath  string // path within the archive (e.g., "bin/payload.exe")
}

// Kind returns "archive".
func (a ArchiveProvenance) Kind() string {
	return "archive"
}

// Path returns the archive path with member path.
func (a ArchiveProvenance) Path() string {
	return fmt.Sprintf("%s:%s", a.ArchivePath, a.MemberPath)
}

// ExtendedProvenance for custom sources (serve mode, library callers, etc.).
type ExtendedProvenance struct {
	Payload map[string]interface{}
}

// Kind returns "extended".
func (e ExtendedProvenance) Kind() string {
	return "extended"
}

// Path returns the "path" payload entry if it is a string.
func (e ExtendedProvenance) Path() string {
	if p, ok := e.Payload["path"].(string); ok {
		return p
	}
	return ""
}
