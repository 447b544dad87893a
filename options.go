package quarkdrive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Defaults for engine configuration.
const (
	DefaultDataRoot  = "./data"
	DefaultCacheRoot = "./cache_ssd"
)

// Option configures an Engine.
type Option func(*engineConfig) error

// engineConfig holds configuration for Open.
type engineConfig struct {
	dataRoot         string
	cacheRoot        string
	ramBudget        uint64
	ramRatio         float64
	writeBackDelay   time.Duration
	diskCacheBudget  uint64
	compressionLevel int
	logger           *slog.Logger
}

// WithDataRoot sets the root directory for blobs and the metadata catalog.
// Defaults to DefaultDataRoot.
func WithDataRoot(path string) Option {
	return func(c *engineConfig) error {
		abs, err := resolvePath(path)
		if err != nil {
			return err
		}
		c.dataRoot = abs
		return nil
	}
}

// WithCacheRoot sets the directory for the disk-tier cache.
// Defaults to DefaultCacheRoot.
func WithCacheRoot(path string) Option {
	return func(c *engineConfig) error {
		abs, err := resolvePath(path)
		if err != nil {
			return err
		}
		c.cacheRoot = abs
		return nil
	}
}

// WithRAMRatio sets the fraction of total system RAM used for the RAM
// cache tier. Defaults to 0.10. Ignored when WithRAMBudget is set.
func WithRAMRatio(ratio float64) Option {
	return func(c *engineConfig) error {
		if ratio <= 0 || ratio > 1 {
			return fmt.Errorf("ram ratio %v out of range (0, 1]", ratio)
		}
		c.ramRatio = ratio
		return nil
	}
}

// WithRAMBudget sets an explicit RAM cache tier byte budget, overriding the
// ratio-derived default.
func WithRAMBudget(budget uint64) Option {
	return func(c *engineConfig) error {
		c.ramBudget = budget
		return nil
	}
}

// WithWriteBackDelay sets the flush period of the cache write-back worker.
// Defaults to 2 seconds.
func WithWriteBackDelay(d time.Duration) Option {
	return func(c *engineConfig) error {
		if d <= 0 {
			return fmt.Errorf("write-back delay must be positive, got %v", d)
		}
		c.writeBackDelay = d
		return nil
	}
}

// WithDiskCacheBudget bounds the disk cache tier's total size during prune
// operations. Zero (the default) leaves the disk tier unbounded.
func WithDiskCacheBudget(budget uint64) Option {
	return func(c *engineConfig) error {
		c.diskCacheBudget = budget
		return nil
	}
}

// WithCompressionLevel sets the zstd compression level (1-19).
// Defaults to 5.
func WithCompressionLevel(level int) Option {
	return func(c *engineConfig) error {
		if level < 1 || level > 19 {
			return fmt.Errorf("compression level %d out of range 1-19", level)
		}
		c.compressionLevel = level
		return nil
	}
}

// WithLogger sets a logger for the engine. By default, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) error {
		c.logger = logger
		return nil
	}
}

// resolvePath expands a leading ~ and converts to an absolute path.
func resolvePath(path string) (string, error) {
	if path != "" && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return abs, nil
}
