// Package blobstore persists compressed blobs keyed by digest on the local
// filesystem.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/quarkdrive/quarkdrive/core"
)

// blobExt is the file extension for stored blobs.
const blobExt = ".zst"

// Store is a directory-backed content-addressed blob store. Blobs are
// immutable once written; concurrent puts of the same digest are safe
// because the content is identical and the rename is atomic.
type Store struct {
	dir string
}

// New creates the blob directory if needed and returns a Store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// PathOf returns the path where the blob for dgst lives.
func (s *Store) PathOf(dgst digest.Digest) string {
	return filepath.Join(s.dir, dgst.Encoded()+blobExt)
}

// Put writes data to the blob file for dgst. The write goes to a temp name
// first and is renamed into place so readers never observe a partial blob.
func (s *Store) Put(dgst digest.Digest, data []byte) error {
	blobPath := s.PathOf(dgst)

	// A unique temp file per put keeps racing puts of one digest apart.
	f, err := os.CreateTemp(s.dir, filepath.Base(blobPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write blob: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close blob: %w", err)
	}

	if err := os.Rename(tmpPath, blobPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

// Get returns the stored blob bytes for dgst, or core.ErrNotFound.
func (s *Store) Get(dgst digest.Digest) ([]byte, error) {
	//nolint:gosec // G304: path is derived from the digest, not user input
	data, err := os.ReadFile(s.PathOf(dgst))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", dgst.Encoded(), core.ErrNotFound)
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Remove deletes the blob file for dgst. Removing an absent blob is not an
// error.
func (s *Store) Remove(dgst digest.Digest) error {
	if err := os.Remove(s.PathOf(dgst)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// TotalSize returns the summed size of all blob files in the store.
func (s *Store) TotalSize() (uint64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read blob directory: %w", err)
	}

	var total uint64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != blobExt {
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
