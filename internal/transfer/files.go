package transfer

import (
	"os"
	"path/filepath"
	"time"
)

// destPath resolves the final on-disk location for a received file: the
// configured save directory plus the base name only, so a hostile peer
// can't use ".." in FileRequest.Name to escape it.
func destPath(saveDir, name string) string {
	if saveDir == "" {
		saveDir = "."
	}
	return filepath.Join(saveDir, filepath.Base(name))
}

// moveFile relocates src to dest, falling back to copy-then-remove when a
// rename can't cross filesystems (e.g. a temp dir on a different device
// than the save directory).
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return err
	}
	return os.Remove(src)
}

// speedBytesPerSec computes an average transfer rate from a start time to
// now; it returns 0 rather than +Inf for a transfer that finished within
// the same timer tick.
func speedBytesPerSec(size int64, started time.Time) float64 {
	elapsed := time.Since(started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(size) / elapsed
}
