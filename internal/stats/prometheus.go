package stats

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	descFiles = prometheus.NewDesc(
		"quarkdrive_catalog_files",
		"Number of logical files in the catalog.",
		nil, nil)
	descBlobs = prometheus.NewDesc(
		"quarkdrive_catalog_blobs",
		"Number of unique blobs in the catalog.",
		nil, nil)
	descDuplicatedBlobs = prometheus.NewDesc(
		"quarkdrive_catalog_duplicated_blobs",
		"Number of blobs referenced by more than one file.",
		nil, nil)
	descOriginalBytes = prometheus.NewDesc(
		"quarkdrive_catalog_original_bytes",
		"Logical size of all files in bytes.",
		nil, nil)
	descCompressedBytes = prometheus.NewDesc(
		"quarkdrive_catalog_compressed_bytes",
		"Physical size of all stored blobs in bytes.",
		nil, nil)
	descCacheRAMBytes = prometheus.NewDesc(
		"quarkdrive_cache_ram_bytes",
		"Current RAM tier size in bytes.",
		nil, nil)
	descCacheRAMBudget = prometheus.NewDesc(
		"quarkdrive_cache_ram_budget_bytes",
		"RAM tier byte budget.",
		nil, nil)
	descCacheDiskBytes = prometheus.NewDesc(
		"quarkdrive_cache_disk_bytes",
		"Current disk tier size in bytes.",
		nil, nil)
	descCacheHits = prometheus.NewDesc(
		"quarkdrive_cache_hits_total",
		"Cache hits by tier.",
		[]string{"tier"}, nil)
	descCacheMisses = prometheus.NewDesc(
		"quarkdrive_cache_misses_total",
		"Cache misses.",
		nil, nil)
	descCodecOriginal = prometheus.NewDesc(
		"quarkdrive_codec_original_bytes_total",
		"Uncompressed bytes fed through the codec.",
		nil, nil)
	descCodecCompressed = prometheus.NewDesc(
		"quarkdrive_codec_compressed_bytes_total",
		"Compressed bytes emitted by the codec.",
		nil, nil)
)

// Collector exports engine snapshots as prometheus metrics. Register it
// with a prometheus.Registerer to scrape the engine.
type Collector struct {
	source func() (Snapshot, error)
	logger *slog.Logger
}

// NewCollector returns a Collector reading snapshots from source.
func NewCollector(source func() (Snapshot, error), logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{source: source, logger: logger}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descFiles
	ch <- descBlobs
	ch <- descDuplicatedBlobs
	ch <- descOriginalBytes
	ch <- descCompressedBytes
	ch <- descCacheRAMBytes
	ch <- descCacheRAMBudget
	ch <- descCacheDiskBytes
	ch <- descCacheHits
	ch <- descCacheMisses
	ch <- descCodecOriginal
	ch <- descCodecCompressed
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s, err := c.source()
	if err != nil {
		c.logger.Warn("stats snapshot failed", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(descFiles, prometheus.GaugeValue, float64(s.TotalFiles))
	ch <- prometheus.MustNewConstMetric(descBlobs, prometheus.GaugeValue, float64(s.TotalBlobs))
	ch <- prometheus.MustNewConstMetric(descDuplicatedBlobs, prometheus.GaugeValue, float64(s.DuplicatedBlobs))
	ch <- prometheus.MustNewConstMetric(descOriginalBytes, prometheus.GaugeValue, float64(s.TotalOriginalBytes))
	ch <- prometheus.MustNewConstMetric(descCompressedBytes, prometheus.GaugeValue, float64(s.TotalCompressedBytes))
	ch <- prometheus.MustNewConstMetric(descCacheRAMBytes, prometheus.GaugeValue, float64(s.Cache.RAMSize))
	ch <- prometheus.MustNewConstMetric(descCacheRAMBudget, prometheus.GaugeValue, float64(s.Cache.RAMBudget))
	ch <- prometheus.MustNewConstMetric(descCacheDiskBytes, prometheus.GaugeValue, float64(s.Cache.DiskSize))
	ch <- prometheus.MustNewConstMetric(descCacheHits, prometheus.CounterValue, float64(s.Cache.RAMHits), "ram")
	ch <- prometheus.MustNewConstMetric(descCacheHits, prometheus.CounterValue, float64(s.Cache.DiskHits), "disk")
	ch <- prometheus.MustNewConstMetric(descCacheMisses, prometheus.CounterValue, float64(s.Cache.Misses))
	ch <- prometheus.MustNewConstMetric(descCodecOriginal, prometheus.CounterValue, float64(s.Codec.OriginalBytes))
	ch <- prometheus.MustNewConstMetric(descCodecCompressed, prometheus.CounterValue, float64(s.Codec.CompressedBytes))
}
