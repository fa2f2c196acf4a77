//go:build unix

package enum

import (
	"os"
	"syscall"
)

// fileKey returns the device and inode of info.
func fileKey(info os.FileInfo) (dev, ino uint64) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	return uint64(st.Dev), uint64(st.Ino)
}
