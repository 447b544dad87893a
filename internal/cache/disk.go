package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// cacheExt is the file extension for disk-tier entries.
const cacheExt = ".cache"

// diskPath returns the disk-tier file for a digest key.
func (h *Hybrid) diskPath(key string) string {
	return filepath.Join(h.dir, key+cacheExt)
}

// readDisk returns the raw bytes for key from the disk tier.
func (h *Hybrid) readDisk(key string) ([]byte, error) {
	//nolint:gosec // G304: path is derived from the digest, not user input
	return os.ReadFile(h.diskPath(key))
}

// writeDisk persists raw bytes for key via temp name + rename so concurrent
// readers never observe a partial entry.
func (h *Hybrid) writeDisk(key string, data []byte) error {
	path := h.diskPath(key)
	tmpPath := path + ".tmp"

	//nolint:gosec // G304: tmpPath is derived from the digest, not user input
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// removeDisk deletes the disk-tier entry for key. Absent entries are not an
// error.
func (h *Hybrid) removeDisk(key string) error {
	if err := os.Remove(h.diskPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// ClearDisk removes and recreates the disk-tier directory.
func (h *Hybrid) ClearDisk() error {
	if err := os.RemoveAll(h.dir); err != nil {
		return fmt.Errorf("clear disk tier: %w", err)
	}
	if err := os.MkdirAll(h.dir, 0o700); err != nil {
		return fmt.Errorf("recreate disk tier: %w", err)
	}
	return nil
}

// DiskSize returns the summed size of all disk-tier entries.
func (h *Hybrid) DiskSize() (uint64, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cache directory: %w", err)
	}

	var total uint64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != cacheExt {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += uint64(info.Size())
	}
	return total, nil
}
