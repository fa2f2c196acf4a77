package enum

import (
	"fmt"
	"os"

	"github.com/praetorian-inc/fdsec/pkg/matcher"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

// FileTarget is a file on disk.
type FileTarget struct {
	Path      string
	FileSize  int64
	ChunkSize int
	Mmap      bool
}

// Name returns the file path.
func (f *FileTarget) Name() string { return f.Path }

// Size returns the size observed during enumeration.
func (f *FileTarget) Size() int64 { return f.FileSize }

// Provenance returns file provenance.
func (f *FileTarget) Provenance() types.Provenance {
	return types.FileProvenance{FilePath: f.Path}
}

// Open maps or opens the file.
func (f *FileTarget) Open() (matcher.Source, error) {
	return openFile(f.Path, f.ChunkSize, f.Mmap)
}

func openFile(path string, chunk int, mmap bool) (matcher.Source, error) {
	if mmap {
		src, err := matcher.OpenMmap(path, chunk)
		if err == nil {
			return src, nil
		}
		// Special files such as /proc entries cannot be mapped.
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return matcher.NewReaderSource(fh, chunk), nil
}

// MemberTarget is an archive member held in memory.
type MemberTarget struct {
	ArchivePath string
	MemberPath  string
	Content     []byte
	ChunkSize   int
}

// Name returns "archive:member".
func (m *MemberTarget) Name() string { return m.Provenance().Path() }

// Size returns the member's uncompressed size.
func (m *MemberTarget) Size() int64 { return int64(len(m.Content)) }

// Provenance returns archive provenance.
func (m *MemberTarget) Provenance() types.Provenance {
	return types.ArchiveProvenance{ArchivePath: m.ArchivePath, MemberPath: m.MemberPath}
}

// Open serves the member content.
func (m *MemberTarget) Open() (matcher.Source, error) {
	return matcher.NewBytesSource(m.Content, m.ChunkSize), nil
}

// ProcessTarget is the executable image of a running process.
type ProcessTarget struct {
	PID       int
	Comm      string
	ImagePath string // resolved path of the executable
	ExePath   string // path that opens the image, e.g. /proc/<pid>/exe
	ImageSize int64
	ChunkSize int
}

// Name returns the image path.
func (p *ProcessTarget) Name() string { return p.ImagePath }

// Size returns the image size.
func (p *ProcessTarget) Size() int64 { return p.ImageSize }

// Provenance returns process provenance.
func (p *ProcessTarget) Provenance() types.Provenance {
	return types.ProcessProvenance{PID: p.PID, Name: p.Comm, ImagePath: p.ImagePath}
}

// Open reads the image through ExePath, which works even when the file
// has been deleted from disk.
func (p *ProcessTarget) Open() (matcher.Source, error) {
	return openFile(p.ExePath, p.ChunkSize, false)
}
