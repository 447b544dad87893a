// Package cache provides the two-tier hybrid cache: a RAM tier with an LRU
// byte budget and a disk tier of digest-keyed files, with asynchronous
// write-back from RAM to disk.
package cache

import (
	"container/list"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultRAMRatio is the fraction of total system RAM used for the RAM tier
// when no explicit budget is configured.
const DefaultRAMRatio = 0.10

// DefaultWriteBackDelay is the flush period of the write-back worker.
const DefaultWriteBackDelay = 2 * time.Second

// Source identifies which tier served a cache hit.
type Source int

const (
	// SourceRAM means the bytes came from the RAM tier.
	SourceRAM Source = iota + 1
	// SourceDisk means the bytes came from the disk tier.
	SourceDisk
)

func (s Source) String() string {
	switch s {
	case SourceRAM:
		return "RAM"
	case SourceDisk:
		return "DISK"
	default:
		return "NONE"
	}
}

// Config configures a Hybrid cache.
type Config struct {
	// Dir is the disk-tier directory.
	Dir string
	// RAMBudget is the RAM tier byte budget. Zero means derive it from
	// RAMRatio and total system memory.
	RAMBudget uint64
	// RAMRatio is the fraction of system RAM for the RAM tier when
	// RAMBudget is zero. Zero means DefaultRAMRatio.
	RAMRatio float64
	// WriteBackDelay is the worker flush period. Zero means
	// DefaultWriteBackDelay.
	WriteBackDelay time.Duration
	// DiskBudget bounds the disk tier's total size during Prune.
	// Zero means unbounded.
	DiskBudget uint64
	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	// RAMSize is the current RAM tier total in bytes.
	RAMSize uint64
	// RAMBudget is the RAM tier byte budget.
	RAMBudget uint64
	// RAMUsagePercent is RAMSize / RAMBudget * 100.
	RAMUsagePercent float64
	// DiskSize is the summed size of the disk tier files in bytes.
	DiskSize uint64
	// RAMHits counts lookups served from the RAM tier.
	RAMHits uint64
	// DiskHits counts lookups served from the disk tier.
	DiskHits uint64
	// Misses counts lookups served by neither tier.
	Misses uint64
}

// Hits returns the total hits across both tiers.
func (s Stats) Hits() uint64 {
	return s.RAMHits + s.DiskHits
}

// HitRate returns the fraction of lookups that hit, as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits() + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total) * 100
}

// entry is one RAM tier resident.
type entry struct {
	key  string
	data []byte
}

// Hybrid is the two-tier cache. The mutex guards the RAM map, the size and
// hit counters, and the write-back set; disk I/O never happens under it.
// Cached byte slices are shared, not copied, and must be treated as
// read-only by callers.
type Hybrid struct {
	dir        string
	ramBudget  uint64
	diskBudget uint64
	logger     *slog.Logger

	mu       sync.Mutex
	residents map[string]*list.Element
	order     *list.List // front is least recently used
	ramSize   uint64
	pending   map[string]struct{}
	ramHits   uint64
	diskHits  uint64
	misses    uint64

	worker *writeBackWorker
}

// New creates the disk-tier directory, resolves the RAM budget, and starts
// the write-back worker.
func New(cfg Config) (*Hybrid, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	budget := cfg.RAMBudget
	if budget == 0 {
		ratio := cfg.RAMRatio
		if ratio == 0 {
			ratio = DefaultRAMRatio
		}
		vm, err := mem.VirtualMemory()
		if err != nil {
			return nil, fmt.Errorf("probe system memory: %w", err)
		}
		budget = uint64(float64(vm.Total) * ratio)
	}

	delay := cfg.WriteBackDelay
	if delay == 0 {
		delay = DefaultWriteBackDelay
	}

	h := &Hybrid{
		dir:        cfg.Dir,
		ramBudget:  budget,
		diskBudget: cfg.DiskBudget,
		logger:     cfg.Logger,
		residents:  make(map[string]*list.Element),
		order:      list.New(),
		pending:    make(map[string]struct{}),
	}
	h.worker = startWriteBack(h, delay)
	return h, nil
}

// Get looks up dgst through the tier pipeline: RAM, then disk (with
// promotion back into RAM), then miss.
func (h *Hybrid) Get(dgst digest.Digest) ([]byte, Source, bool) {
	key := dgst.Encoded()

	h.mu.Lock()
	if elem, ok := h.residents[key]; ok {
		h.order.MoveToBack(elem)
		h.ramHits++
		data := elem.Value.(*entry).data
		h.mu.Unlock()
		return data, SourceRAM, true
	}
	h.mu.Unlock()

	data, err := h.readDisk(key)
	if err == nil {
		h.mu.Lock()
		h.diskHits++
		h.insertLocked(key, data)
		h.mu.Unlock()
		h.logger.Debug("cache hit", "tier", "disk", "digest", key)
		return data, SourceDisk, true
	}

	h.mu.Lock()
	h.misses++
	h.mu.Unlock()
	return nil, 0, false
}

// Put inserts dgst into the RAM tier (evicting as needed) and queues it for
// asynchronous disk persistence. It does not block on disk I/O.
func (h *Hybrid) Put(dgst digest.Digest, data []byte) {
	key := dgst.Encoded()
	h.mu.Lock()
	h.insertLocked(key, data)
	if _, resident := h.residents[key]; resident {
		h.pending[key] = struct{}{}
	}
	h.mu.Unlock()
}

// insertLocked adds or refreshes a RAM entry at the MRU position and evicts
// from the LRU end while over budget. Caller must hold h.mu.
func (h *Hybrid) insertLocked(key string, data []byte) {
	if elem, ok := h.residents[key]; ok {
		old := elem.Value.(*entry)
		h.ramSize -= uint64(len(old.data))
		old.data = data
		h.ramSize += uint64(len(data))
		h.order.MoveToBack(elem)
	} else {
		h.residents[key] = h.order.PushBack(&entry{key: key, data: data})
		h.ramSize += uint64(len(data))
	}

	for h.ramSize > h.ramBudget {
		head := h.order.Front()
		if head == nil {
			break
		}
		evicted := head.Value.(*entry)
		h.order.Remove(head)
		delete(h.residents, evicted.key)
		delete(h.pending, evicted.key)
		h.ramSize -= uint64(len(evicted.data))
	}
}

// Remove drops dgst from both tiers, disk first. Used by the reclaim pass.
func (h *Hybrid) Remove(dgst digest.Digest) error {
	key := dgst.Encoded()
	if err := h.removeDisk(key); err != nil {
		return err
	}
	h.mu.Lock()
	h.removeRAMLocked(key)
	h.mu.Unlock()
	return nil
}

// ClearRAM drops every RAM tier entry and the write-back set.
func (h *Hybrid) ClearRAM() {
	h.mu.Lock()
	h.residents = make(map[string]*list.Element)
	h.order = list.New()
	h.ramSize = 0
	h.pending = make(map[string]struct{})
	h.mu.Unlock()
}

// RAMBudget returns the configured RAM tier byte budget.
func (h *Hybrid) RAMBudget() uint64 {
	return h.ramBudget
}

// Stats returns a snapshot of the cache counters. DiskSize is computed by
// walking the disk tier, outside the lock.
func (h *Hybrid) Stats() Stats {
	diskSize, err := h.DiskSize()
	if err != nil {
		h.logger.Debug("disk tier size walk failed", "error", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	s := Stats{
		RAMSize:   h.ramSize,
		RAMBudget: h.ramBudget,
		DiskSize:  diskSize,
		RAMHits:   h.ramHits,
		DiskHits:  h.diskHits,
		Misses:    h.misses,
	}
	if h.ramBudget > 0 {
		s.RAMUsagePercent = float64(h.ramSize) / float64(h.ramBudget) * 100
	}
	return s
}

// Close stops the write-back worker after a final drain of the pending set.
func (h *Hybrid) Close() error {
	h.worker.stop()
	return nil
}

func (h *Hybrid) removeRAMLocked(key string) {
	if elem, ok := h.residents[key]; ok {
		h.ramSize -= uint64(len(elem.Value.(*entry).data))
		h.order.Remove(elem)
		delete(h.residents, key)
	}
	delete(h.pending, key)
}
