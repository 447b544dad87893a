package cache

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// PruneOptions configures disk-tier pruning behavior.
type PruneOptions struct {
	// MaxSize is the maximum total disk tier size in bytes. Entries are
	// evicted oldest modification time first until the tier is under this
	// limit; reads do not refresh an entry's modification time. Zero means
	// use the cache's configured DiskBudget; if that is also zero, no size
	// limit applies.
	MaxSize uint64

	// MaxAge is the maximum age for disk tier entries, judged by file
	// modification time. Zero means no age limit.
	MaxAge time.Duration
}

// PruneResult contains statistics about a prune operation.
type PruneResult struct {
	// EntriesRemoved is the number of entries that were evicted.
	EntriesRemoved int
	// BytesRemoved is the total bytes freed.
	BytesRemoved uint64
	// EntriesRemaining is the number of entries still on disk.
	EntriesRemaining int
	// BytesRemaining is the total bytes still on disk.
	BytesRemaining uint64
}

type diskEntry struct {
	key     string
	size    uint64
	modTime time.Time
}

// Prune removes disk-tier entries based on the provided options. Entries
// are evicted by age first, then oldest modification time first until the
// size limit is met. The RAM tier is untouched.
func (h *Hybrid) Prune(ctx context.Context, opts PruneOptions) (PruneResult, error) {
	var result PruneResult

	if opts.MaxSize == 0 {
		opts.MaxSize = h.diskBudget
	}

	entries, err := h.diskEntries()
	if err != nil {
		return result, err
	}
	if len(entries) == 0 {
		return result, nil
	}

	toRemove := selectEntriesToRemove(entries, opts)

	for _, e := range entries {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if toRemove[e.key] {
			if err := h.removeDisk(e.key); err != nil {
				h.logger.Warn("failed to evict disk entry", "digest", e.key, "error", err)
				continue
			}
			result.EntriesRemoved++
			result.BytesRemoved += e.size
		} else {
			result.EntriesRemaining++
			result.BytesRemaining += e.size
		}
	}

	h.logger.Debug("disk tier pruned",
		"removed", result.EntriesRemoved,
		"bytes_removed", result.BytesRemoved,
		"remaining", result.EntriesRemaining,
		"bytes_remaining", result.BytesRemaining)

	return result, nil
}

// selectEntriesToRemove marks entries exceeding the age limit, then the
// oldest remaining entries until the total is under the size limit.
func selectEntriesToRemove(entries []diskEntry, opts PruneOptions) map[string]bool {
	toRemove := make(map[string]bool)

	if opts.MaxAge > 0 {
		cutoff := time.Now().Add(-opts.MaxAge)
		for _, e := range entries {
			if e.modTime.Before(cutoff) {
				toRemove[e.key] = true
			}
		}
	}

	if opts.MaxSize > 0 {
		remaining := make([]diskEntry, 0, len(entries))
		var totalSize uint64
		for _, e := range entries {
			if !toRemove[e.key] {
				remaining = append(remaining, e)
				totalSize += e.size
			}
		}
		if totalSize <= opts.MaxSize {
			return toRemove
		}

		sort.Slice(remaining, func(i, j int) bool {
			return remaining[i].modTime.Before(remaining[j].modTime)
		})
		for _, e := range remaining {
			if totalSize <= opts.MaxSize {
				break
			}
			toRemove[e.key] = true
			totalSize -= e.size
		}
	}

	return toRemove
}

// diskEntries lists the disk tier with sizes and modification times.
func (h *Hybrid) diskEntries() ([]diskEntry, error) {
	files, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]diskEntry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != cacheExt {
			continue
		}
		info, err := f.Info()
		if err != nil {
			h.logger.Debug("failed to stat disk entry", "name", f.Name(), "error", err)
			continue
		}
		entries = append(entries, diskEntry{
			key:     strings.TrimSuffix(f.Name(), cacheExt),
			size:    uint64(info.Size()),
			modTime: info.ModTime(),
		})
	}
	return entries, nil
}
