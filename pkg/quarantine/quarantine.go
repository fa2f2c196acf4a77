// Package quarantine moves detected files into a zip archive.
package quarantine

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// mu serializes rewrites of quarantine archives within the process.
var mu sync.Mutex

// Quarantine appends targetPath to the zip archive at archivePath, creating
// the archive if needed, and then removes targetPath. The archive is
// replaced atomically, so a failure leaves both the archive and the target
// as they were. Entries are named after the target's base name, with a
// numeric suffix when the name is already taken.
func Quarantine(archivePath, targetPath string) error {
	mu.Lock()
	defer mu.Unlock()

	src, err := os.Open(targetPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", targetPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("cannot quarantine %s: not a regular file", targetPath)
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".quarantine-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := rewrite(tmp, archivePath, src, info); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		return fmt.Errorf("failed to replace archive: %w", err)
	}

	src.Close()
	if err := os.Remove(targetPath); err != nil {
		return fmt.Errorf("archived but failed to remove %s: %w", targetPath, err)
	}
	return nil
}

// rewrite copies the existing archive into out and appends src.
func rewrite(out io.Writer, archivePath string, src io.Reader, info os.FileInfo) error {
	w := zip.NewWriter(out)
	taken := make(map[string]bool)

	existing, err := zip.OpenReader(archivePath)
	switch {
	case err == nil:
		defer existing.Close()
		for _, f := range existing.File {
			if err := w.Copy(f); err != nil {
				return fmt.Errorf("failed to copy %s: %w", f.Name, err)
			}
			taken[f.Name] = true
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}

	hdr := &zip.FileHeader{
		Name:     entryName(info.Name(), taken),
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	hdr.SetMode(info.Mode())
	fw, err := w.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, src); err != nil {
		return fmt.Errorf("failed to archive %s: %w", info.Name(), err)
	}
	return w.Close()
}

func entryName(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for i := 1; ; i++ {
		name := base + "." + strconv.Itoa(i)
		if !taken[name] {
			return name
		}
	}
}
