package quarkdrive

import (
	"context"
	"time"

	"github.com/quarkdrive/quarkdrive/internal/cache"
)

// CacheStats is a snapshot of the hybrid cache counters.
// Re-exported from the internal cache package.
type CacheStats = cache.Stats

// CachePruneOptions configures disk-tier cache pruning.
type CachePruneOptions struct {
	// MaxSize is the maximum total disk tier size in bytes. Zero means
	// use the engine's configured disk cache budget; if that is also
	// zero, no size limit applies.
	MaxSize uint64

	// MaxAge is the maximum age for disk tier entries. Zero means no age
	// limit.
	MaxAge time.Duration
}

// CachePruneResult contains statistics about a prune operation.
type CachePruneResult struct {
	// EntriesRemoved is the number of entries that were evicted.
	EntriesRemoved int
	// BytesRemoved is the total bytes freed.
	BytesRemoved uint64
	// EntriesRemaining is the number of entries still on disk.
	EntriesRemaining int
	// BytesRemaining is the total bytes still on disk.
	BytesRemaining uint64
}

// CacheStats returns a snapshot of the hybrid cache counters.
func (e *Engine) CacheStats() (CacheStats, error) {
	if err := e.checkOpen(); err != nil {
		return CacheStats{}, err
	}
	return e.cache.Stats(), nil
}

// PruneCache evicts disk-tier cache entries by age, then oldest
// modification time first until the tier is under the size limit. The RAM
// tier is untouched.
func (e *Engine) PruneCache(ctx context.Context, opts CachePruneOptions) (CachePruneResult, error) {
	if err := e.checkOpen(); err != nil {
		return CachePruneResult{}, err
	}

	res, err := e.cache.Prune(ctx, cache.PruneOptions{
		MaxSize: opts.MaxSize,
		MaxAge:  opts.MaxAge,
	})
	if err != nil {
		return CachePruneResult{}, err
	}
	return CachePruneResult{
		EntriesRemoved:   res.EntriesRemoved,
		BytesRemoved:     res.BytesRemoved,
		EntriesRemaining: res.EntriesRemaining,
		BytesRemaining:   res.BytesRemaining,
	}, nil
}

// ClearRAMCache drops every RAM tier entry and the pending write-back set.
func (e *Engine) ClearRAMCache() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.cache.ClearRAM()
	return nil
}

// ClearDiskCache removes every disk tier entry.
func (e *Engine) ClearDiskCache() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.cache.ClearDisk()
}
