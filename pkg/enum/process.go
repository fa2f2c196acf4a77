package enum

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// deletedSuffix is appended by the kernel to exe links whose file is gone.
const deletedSuffix = " (deleted)"

// imageID identifies one version of an executable. A binary rewritten or
// re-dropped at the same path gets a new ID and is scanned again.
type imageID struct {
	path     string
	dev, ino uint64
	size     int64
	mtime    int64
}

// ProcessEnumerator yields the executable images of running processes
// from procfs. Each image is reported once per enumerator, however many
// processes run it.
type ProcessEnumerator struct {
	// ProcRoot is the procfs mount point (default: /proc)
	ProcRoot string

	// ChunkSize is the read size of opened images
	ChunkSize int

	self int
	mu   sync.Mutex
	seen map[imageID]bool
}

// NewProcessEnumerator creates an enumerator over procRoot ("" for /proc).
func NewProcessEnumerator(procRoot string, chunkSize int) *ProcessEnumerator {
	if procRoot == "" {
		procRoot = procfs.DefaultMountPoint
	}
	return &ProcessEnumerator{
		ProcRoot:  procRoot,
		ChunkSize: chunkSize,
		self:      os.Getpid(),
		seen:      make(map[imageID]bool),
	}
}

// Enumerate yields every image not reported before. Processes that exit
// or deny access mid-walk are skipped.
func (p *ProcessEnumerator) Enumerate(ctx context.Context, fn func(Target) error) error {
	fs, err := procfs.NewFS(p.ProcRoot)
	if err != nil {
		return err
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return err
	}

	for _, proc := range procs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if proc.PID == p.self {
			continue
		}

		t, id, ok := p.inspect(proc)
		if !ok || !p.markSeen(id) {
			continue
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

// Watch runs Enumerate every interval until ctx is done, so fn sees each
// newly started image once.
func (p *ProcessEnumerator) Watch(ctx context.Context, interval time.Duration, fn func(Target) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.Enumerate(ctx, fn); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Forget allows every known version of image to be reported again.
func (p *ProcessEnumerator) Forget(image string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.seen {
		if id.path == image {
			delete(p.seen, id)
		}
	}
}

func (p *ProcessEnumerator) markSeen(id imageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[id] {
		return false
	}
	p.seen[id] = true
	return true
}

func (p *ProcessEnumerator) inspect(proc procfs.Proc) (*ProcessTarget, imageID, bool) {
	image, err := proc.Executable()
	if err != nil || image == "" {
		// Kernel threads have no exe link.
		return nil, imageID{}, false
	}
	image = strings.TrimSuffix(image, deletedSuffix)

	exe := filepath.Join(p.ProcRoot, strconv.Itoa(proc.PID), "exe")
	info, err := os.Stat(exe)
	if err != nil || !info.Mode().IsRegular() {
		return nil, imageID{}, false
	}

	id := imageID{path: image, size: info.Size(), mtime: info.ModTime().UnixNano()}
	id.dev, id.ino = fileKey(info)

	comm, _ := proc.Comm()
	return &ProcessTarget{
		PID:       proc.PID,
		Comm:      comm,
		ImagePath: image,
		ExePath:   exe,
		ImageSize: info.Size(),
		ChunkSize: p.ChunkSize,
	}, id, true
}
