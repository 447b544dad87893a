package quarkdrive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/quarkdrive/quarkdrive/core"
	"github.com/quarkdrive/quarkdrive/internal/blobstore"
	"github.com/quarkdrive/quarkdrive/internal/cache"
	"github.com/quarkdrive/quarkdrive/internal/catalog"
	"github.com/quarkdrive/quarkdrive/internal/codec"
	"github.com/quarkdrive/quarkdrive/internal/hashing"
)

// Engine is the storage engine: a content-addressed, deduplicating,
// compressing store with a hybrid read cache. All methods are safe for
// concurrent use.
type Engine struct {
	catalog *catalog.Catalog
	blobs   *blobstore.Store
	codec   *codec.Codec
	cache   *cache.Hybrid
	logger  *slog.Logger

	mu         sync.Mutex
	quarantine map[digest.Digest]struct{}
	closed     bool
}

// Open initialises the engine under the configured data and cache roots,
// creating directories and the catalog as needed.
func Open(opts ...Option) (*Engine, error) {
	cfg := engineConfig{
		dataRoot:  DefaultDataRoot,
		cacheRoot: DefaultCacheRoot,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(cfg.dataRoot, 0o700); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}

	blobs, err := blobstore.New(filepath.Join(cfg.dataRoot, "blobs"))
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Open(filepath.Join(cfg.dataRoot, "metadata.db"), cfg.logger)
	if err != nil {
		return nil, err
	}

	cdc, err := codec.New(cfg.compressionLevel)
	if err != nil {
		cat.Close()
		return nil, err
	}

	hybrid, err := cache.New(cache.Config{
		Dir:            cfg.cacheRoot,
		RAMBudget:      cfg.ramBudget,
		RAMRatio:       cfg.ramRatio,
		WriteBackDelay: cfg.writeBackDelay,
		DiskBudget:     cfg.diskCacheBudget,
		Logger:         cfg.logger,
	})
	if err != nil {
		cat.Close()
		return nil, err
	}

	return &Engine{
		catalog:    cat,
		blobs:      blobs,
		codec:      cdc,
		cache:      hybrid,
		logger:     cfg.logger,
		quarantine: make(map[digest.Digest]struct{}),
	}, nil
}

// StoreFile ingests the file at srcPath under the logical path srcPath.
// Duplicate content is detected by digest and stored once; re-ingest of the
// same path with unchanged content leaves refcounts untouched.
func (e *Engine) StoreFile(srcPath string) (digest.Digest, error) {
	if err := e.checkOpen(); err != nil {
		return "", err
	}

	dgst, err := hashing.File(srcPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(srcPath)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	size := uint64(info.Size())

	err = e.storeBlob(dgst, size, func() ([]byte, error) {
		//nolint:gosec // G304: callers hand us the path they want ingested
		return os.ReadFile(srcPath)
	})
	if err != nil {
		return "", err
	}

	if err := e.catalog.LinkFile(srcPath, dgst, size); err != nil {
		return "", err
	}

	e.logger.Debug("stored file", "path", srcPath, "digest", dgst.Encoded(), "size", size)
	return dgst, nil
}

// StoreBytes ingests in-memory contents under the logical path. The bytes
// are also placed in the cache, since a caller writing through the VFS is
// likely to read them back. data must not be mutated after the call.
func (e *Engine) StoreBytes(path string, data []byte) (digest.Digest, error) {
	if err := e.checkOpen(); err != nil {
		return "", err
	}

	dgst := hashing.Bytes(data)
	size := uint64(len(data))

	err := e.storeBlob(dgst, size, func() ([]byte, error) { return data, nil })
	if err != nil {
		return "", err
	}
	if err := e.catalog.LinkFile(path, dgst, size); err != nil {
		return "", err
	}

	// A duplicate ingest skips storeBlob's cache fill, but a caller
	// writing through the VFS is about to read these bytes back.
	e.cache.Put(dgst, data)
	return dgst, nil
}

// storeBlob accounts one reference for dgst, writing the compressed blob
// first when the digest is novel. The blob write happens before the catalog
// row lands so a record never points at a missing file; racing stores of
// the same digest are settled by the catalog's single-writer transaction.
func (e *Engine) storeBlob(dgst digest.Digest, size uint64, load func() ([]byte, error)) error {
	err := e.catalog.IncrRef(dgst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}

	data, err := load()
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	compressed := e.codec.Compress(data)
	if err := e.blobs.Put(dgst, compressed); err != nil {
		return err
	}
	if err := e.catalog.AcquireRef(dgst, e.blobs.PathOf(dgst), size, uint64(len(compressed))); err != nil {
		return err
	}

	e.cache.Put(dgst, data)
	return nil
}

// LoadBytes returns the current contents of the logical path, reading
// through the cache and decompressing from the blob store on a miss.
// The returned slice is shared with the cache and must not be mutated.
func (e *Engine) LoadBytes(path string) ([]byte, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	rec, err := e.catalog.FileByPath(path)
	if err != nil {
		return nil, err
	}
	return e.loadByDigest(rec.Digest)
}

// loadByDigest resolves the bytes for a digest through the cache pipeline.
func (e *Engine) loadByDigest(dgst digest.Digest) ([]byte, error) {
	if e.isQuarantined(dgst) {
		return nil, fmt.Errorf("digest %s: %w", dgst.Encoded(), core.ErrQuarantined)
	}

	if data, src, ok := e.cache.Get(dgst); ok {
		e.logger.Debug("cache hit", "tier", src.String(), "digest", dgst.Encoded())
		return data, nil
	}

	compressed, err := e.blobs.Get(dgst)
	if err != nil {
		return nil, err
	}
	data, err := e.codec.Decompress(compressed)
	if err != nil {
		e.quarantineDigest(dgst)
		return nil, fmt.Errorf("blob %s: %w", dgst.Encoded(), err)
	}
	if got := hashing.Bytes(data); got != dgst {
		return nil, fmt.Errorf("blob %s decompressed to digest %s: %w",
			dgst.Encoded(), got.Encoded(), core.ErrInvariant)
	}

	e.cache.Put(dgst, data)
	return data, nil
}

// RetrieveFile writes the current contents of the logical path to outPath.
func (e *Engine) RetrieveFile(path, outPath string) error {
	data, err := e.LoadBytes(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// RemoveFile deletes the FileRecord for path and decrements its blob's
// refcount. The blob itself is retained until an explicit Reclaim, even at
// refcount zero.
func (e *Engine) RemoveFile(path string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	rec, err := e.catalog.DeleteFile(path)
	if err != nil {
		return err
	}
	e.logger.Debug("removed file", "path", path, "digest", rec.Digest.Encoded())
	return nil
}

// Lookup returns the FileRecord for the logical path.
func (e *Engine) Lookup(path string) (*core.FileRecord, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.catalog.FileByPath(path)
}

// BlobInfo returns the BlobRecord for a digest.
func (e *Engine) BlobInfo(dgst digest.Digest) (*core.BlobRecord, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.catalog.Blob(dgst)
}

// Files lists all FileRecords in the catalog.
func (e *Engine) Files() ([]core.FileRecord, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.catalog.Files()
}

// ReclaimResult contains statistics about a reclaim pass.
type ReclaimResult struct {
	// BlobsRemoved is the number of zero-refcount blobs deleted.
	BlobsRemoved int
	// BytesFreed is the compressed bytes released from the blob store.
	BytesFreed uint64
}

// Reclaim deletes every blob whose refcount has reached zero. For each
// blob: the blob file goes first, then the disk-tier cache entry, then the
// RAM entry, then the catalog row, so an interrupted pass can be re-run.
func (e *Engine) Reclaim(ctx context.Context) (ReclaimResult, error) {
	if err := e.checkOpen(); err != nil {
		return ReclaimResult{}, err
	}

	orphans, err := e.catalog.ZeroRefBlobs()
	if err != nil {
		return ReclaimResult{}, err
	}

	var result ReclaimResult
	for _, rec := range orphans {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := e.blobs.Remove(rec.Digest); err != nil {
			return result, err
		}
		if err := e.cache.Remove(rec.Digest); err != nil {
			return result, err
		}
		if err := e.catalog.DeleteBlob(rec.Digest); err != nil {
			return result, err
		}
		result.BlobsRemoved++
		result.BytesFreed += rec.SizeCompressed
		e.logger.Debug("reclaimed blob", "digest", rec.Digest.Encoded())
	}
	return result, nil
}

// Close stops the cache write-back worker, draining pending entries, and
// closes the catalog. The engine is unusable afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	cacheErr := e.cache.Close()
	catErr := e.catalog.Close()
	if cacheErr != nil {
		return cacheErr
	}
	return catErr
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return core.ErrClosed
	}
	return nil
}

func (e *Engine) isQuarantined(dgst digest.Digest) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.quarantine[dgst]
	return ok
}

func (e *Engine) quarantineDigest(dgst digest.Digest) {
	e.mu.Lock()
	e.quarantine[dgst] = struct{}{}
	e.mu.Unlock()
	e.logger.Warn("quarantined corrupt blob", "digest", dgst.Encoded())
}
