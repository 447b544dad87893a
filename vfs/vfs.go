// Package vfs presents a storage engine as a flat filename namespace to an
// external mount driver through a fixed set of typed callbacks.
package vfs

import (
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/quarkdrive/quarkdrive"
	"github.com/quarkdrive/quarkdrive/core"
	"github.com/quarkdrive/quarkdrive/internal/hashing"
)

// DefaultCallbackTimeout bounds each host callback dispatch.
const DefaultCallbackTimeout = 30 * time.Second

// fileMode is the fixed mode reported for every file in the namespace.
const fileMode = 0o644

// dirMode is the fixed mode reported for the mount root.
const dirMode = 0o755

// Attr is the attribute set returned by Getattr.
type Attr struct {
	// Mode is the file mode, including the directory bit for the root.
	Mode fs.FileMode
	// NLink is the link count: 2 for the root, 1 for files.
	NLink uint32
	// Size is the length of the decompressed current contents.
	Size uint64
	// ModTime is when the entry was last written through this adapter, or
	// when the adapter was created for names seeded from the catalog.
	ModTime time.Time
}

// nameEntry is the in-memory view of one name in the namespace.
type nameEntry struct {
	dgst    digest.Digest
	size    uint64
	modTime time.Time
}

// Adapter exposes an engine as a flat namespace: every file is a direct
// child of the mount root and there are no subdirectories. A single
// reader-writer lock serialises mutations; reads share it.
type Adapter struct {
	eng           *quarkdrive.Engine
	host          MountHost
	logger        *slog.Logger
	timeout       time.Duration
	createOnWrite bool

	mu      sync.RWMutex
	names   map[string]nameEntry
	mounted bool
}

// NewAdapter builds an adapter over eng, seeding the name map from the
// engine's catalog so a remounted volume sees its previous contents.
func NewAdapter(eng *quarkdrive.Engine, opts ...AdapterOption) (*Adapter, error) {
	a := &Adapter{
		eng:           eng,
		logger:        slog.New(slog.DiscardHandler),
		timeout:       DefaultCallbackTimeout,
		createOnWrite: true,
		names:         make(map[string]nameEntry),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	records, err := eng.Files()
	if err != nil {
		return nil, fmt.Errorf("seed namespace: %w", err)
	}
	now := time.Now()
	for _, rec := range records {
		a.names[rec.Path] = nameEntry{dgst: rec.Digest, size: rec.Size, modTime: now}
	}
	return a, nil
}

// Getattr returns the attributes for path.
func (a *Adapter) Getattr(path string) (Attr, error) {
	if isRoot(path) {
		return Attr{Mode: fs.ModeDir | dirMode, NLink: 2, ModTime: time.Now()}, nil
	}

	name, err := splitName(path)
	if err != nil {
		return Attr{}, err
	}

	a.mu.RLock()
	entry, ok := a.names[name]
	a.mu.RUnlock()
	if !ok {
		return Attr{}, fmt.Errorf("%s: %w", path, core.ErrNotFound)
	}
	return Attr{Mode: fileMode, NLink: 1, Size: entry.size, ModTime: entry.modTime}, nil
}

// Readdir lists the namespace. Only the root is a directory.
func (a *Adapter) Readdir(path string) ([]string, error) {
	if !isRoot(path) {
		return nil, fmt.Errorf("%s: %w", path, core.ErrNotDir)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.names))
	for name := range a.names {
		out = append(out, name)
	}
	return out, nil
}

// Read returns up to size bytes of the current contents starting at offset.
// Reads past the end return the available suffix; reads at or past the end
// return an empty slice.
func (a *Adapter) Read(path string, size, offset uint64) ([]byte, error) {
	name, err := splitName(path)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	_, ok := a.names[name]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, core.ErrNotFound)
	}

	data, err := a.eng.LoadBytes(name)
	if err != nil {
		return nil, err
	}

	if offset >= uint64(len(data)) {
		return nil, nil
	}
	end := offset + size
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return data[offset:end], nil
}

// Write overlays data at offset onto the current contents, zero-extending
// when offset is past the end, and stores the result as a new blob if the
// bytes changed. Existing blobs are never mutated.
func (a *Adapter) Write(path string, data []byte, offset uint64) (int, error) {
	name, err := splitName(path)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.currentLocked(name)
	if err != nil {
		return 0, err
	}

	end := offset + uint64(len(data))
	var next []byte
	if end > uint64(len(current)) {
		next = make([]byte, end)
		copy(next, current)
	} else {
		next = make([]byte, len(current))
		copy(next, current)
	}
	copy(next[offset:], data)

	if err := a.commitLocked(name, next); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Create adds an empty file at path, overwriting any existing entry.
func (a *Adapter) Create(path string, _ fs.FileMode) error {
	name, err := splitName(path)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commitLocked(name, []byte{})
}

// Unlink removes the file at path from the namespace and the catalog.
func (a *Adapter) Unlink(path string) error {
	name, err := splitName(path)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.names[name]; !ok {
		return fmt.Errorf("%s: %w", path, core.ErrNotFound)
	}
	if err := a.eng.RemoveFile(name); err != nil {
		return err
	}
	delete(a.names, name)
	return nil
}

// Truncate cuts or zero-extends the file at path to length.
func (a *Adapter) Truncate(path string, length uint64) error {
	name, err := splitName(path)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.names[name]; !ok {
		return fmt.Errorf("%s: %w", path, core.ErrNotFound)
	}
	current, err := a.currentLocked(name)
	if err != nil {
		return err
	}
	if uint64(len(current)) == length {
		return nil
	}

	next := make([]byte, length)
	copy(next, current)
	return a.commitLocked(name, next)
}

// currentLocked returns the current bytes for name, or the empty slice for
// an absent name when create-on-write is enabled. Caller must hold a.mu.
func (a *Adapter) currentLocked(name string) ([]byte, error) {
	if _, ok := a.names[name]; !ok {
		if !a.createOnWrite {
			return nil, fmt.Errorf("%s: %w", name, core.ErrNotFound)
		}
		return nil, nil
	}
	return a.eng.LoadBytes(name)
}

// commitLocked stores next as the contents of name unless the digest is
// unchanged, and refreshes the name map. Caller must hold a.mu for writing.
func (a *Adapter) commitLocked(name string, next []byte) error {
	newDgst := hashing.Bytes(next)
	if entry, ok := a.names[name]; ok && entry.dgst == newDgst {
		a.names[name] = nameEntry{dgst: newDgst, size: entry.size, modTime: time.Now()}
		return nil
	}

	dgst, err := a.eng.StoreBytes(name, next)
	if err != nil {
		return err
	}
	a.names[name] = nameEntry{dgst: dgst, size: uint64(len(next)), modTime: time.Now()}
	return nil
}

// isRoot reports whether path names the mount root.
func isRoot(path string) bool {
	return path == "/" || path == ""
}

// splitName validates that path names a direct child of the root and
// returns the bare name. Nested paths do not exist in a flat namespace.
func splitName(path string) (string, error) {
	name := strings.TrimPrefix(path, "/")
	if name == "" {
		return "", fmt.Errorf("%s: %w", path, core.ErrNotFound)
	}
	if strings.Contains(name, "/") {
		return "", fmt.Errorf("%s: %w", path, core.ErrNotFound)
	}
	return name, nil
}
