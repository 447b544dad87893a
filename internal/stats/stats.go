// Package stats aggregates the engine's counters into point-in-time
// snapshots and exposes them as prometheus metrics.
package stats

import (
	"github.com/quarkdrive/quarkdrive/internal/cache"
	"github.com/quarkdrive/quarkdrive/internal/catalog"
	"github.com/quarkdrive/quarkdrive/internal/codec"
)

// Snapshot is a consistent-enough view of the engine's counters. Each
// source (catalog, cache, codec) is internally consistent; the three are
// read one after another without a global lock.
type Snapshot struct {
	// TotalFiles is the number of logical files in the catalog.
	TotalFiles uint64
	// TotalBlobs is the number of unique blobs in the catalog.
	TotalBlobs uint64
	// DuplicatedBlobs is the number of blobs referenced more than once.
	DuplicatedBlobs uint64
	// TotalOriginalBytes is the logical size of all files (size_original
	// weighted by refcount).
	TotalOriginalBytes uint64
	// TotalCompressedBytes is the physical size of all stored blobs.
	TotalCompressedBytes uint64
	// SpaceSavedBytes is what deduplication plus compression saved.
	SpaceSavedBytes uint64
	// CompressionRatio is SpaceSavedBytes as a percentage of
	// TotalOriginalBytes, so it counts deduplication and compression
	// savings together.
	CompressionRatio float64
	// Cache is the hybrid cache snapshot.
	Cache cache.Stats
	// Codec is the engine codec's compression byte counters.
	Codec codec.Counters
}

// Build combines the three counter sources into one Snapshot.
func Build(agg catalog.Aggregates, cacheStats cache.Stats, counters codec.Counters) Snapshot {
	s := Snapshot{
		TotalFiles:           agg.TotalFiles,
		TotalBlobs:           agg.TotalBlobs,
		DuplicatedBlobs:      agg.DuplicatedBlobs,
		TotalOriginalBytes:   agg.TotalOriginalBytes,
		TotalCompressedBytes: agg.TotalCompressedBytes,
		Cache:                cacheStats,
		Codec:                counters,
	}
	if agg.TotalOriginalBytes > agg.TotalCompressedBytes {
		s.SpaceSavedBytes = agg.TotalOriginalBytes - agg.TotalCompressedBytes
	}
	if agg.TotalOriginalBytes > 0 {
		s.CompressionRatio = float64(s.SpaceSavedBytes) / float64(agg.TotalOriginalBytes) * 100
	}
	return s
}
