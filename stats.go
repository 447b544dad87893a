package quarkdrive

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quarkdrive/quarkdrive/internal/stats"
)

// Stats is a point-in-time snapshot of the engine's counters.
// Re-exported from the internal stats package.
type Stats = stats.Snapshot

// Stats returns a snapshot combining catalog aggregates, cache counters,
// and codec byte counters.
func (e *Engine) Stats() (Stats, error) {
	if err := e.checkOpen(); err != nil {
		return Stats{}, err
	}

	agg, err := e.catalog.Aggregates()
	if err != nil {
		return Stats{}, err
	}
	return stats.Build(agg, e.cache.Stats(), e.codec.Counters()), nil
}

// StatsCollector returns a prometheus collector exporting the engine's
// snapshot on each scrape.
func (e *Engine) StatsCollector() prometheus.Collector {
	return stats.NewCollector(func() (stats.Snapshot, error) { return e.Stats() }, e.logger)
}
