package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/quarkdrive/quarkdrive"
)

// Cache command flags
var (
	pruneMaxSize string
	pruneMaxAge  string
	clearConfirm bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the hybrid cache",
	Long: `Manage the hybrid read cache.

The RAM tier is bounded by the configured budget and managed automatically;
the disk tier persists across runs and can be inspected, cleared, or pruned
with the subcommands.`,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache statistics",
	Long: `Display information about the hybrid cache.

Examples:
  quarkdrive cache info`,
	Args: cobra.NoArgs,
	RunE: runCacheInfo,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached data",
	Long: `Remove every entry from both cache tiers.

This only affects the cache; stored blobs and the catalog are untouched.
Use --yes to skip confirmation.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict disk cache entries by size or age",
	Long: `Evict disk-tier cache entries until the tier is under the size
limit, oldest first, and drop entries older than the age limit.

Examples:
  quarkdrive cache prune --max-size 10GiB
  quarkdrive cache prune --max-age 720h`,
	Args: cobra.NoArgs,
	RunE: runCachePrune,
}

func init() {
	cacheClearCmd.Flags().BoolVar(&clearConfirm, "yes", false, "skip confirmation")
	cachePruneCmd.Flags().StringVar(&pruneMaxSize, "max-size", "", "maximum disk tier size (e.g. 10GiB)")
	cachePruneCmd.Flags().StringVar(&pruneMaxAge, "max-age", "", "maximum entry age (e.g. 720h)")

	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheInfo(cmd *cobra.Command, _ []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	s, err := eng.CacheStats()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "RAM tier:  %s of %s (%.1f%%)\n",
		humanize.IBytes(s.RAMSize), humanize.IBytes(s.RAMBudget), s.RAMUsagePercent)
	fmt.Fprintf(out, "Disk tier: %s\n", humanize.IBytes(s.DiskSize))
	fmt.Fprintf(out, "Hits:      %d RAM, %d disk (%.1f%% hit rate)\n",
		s.RAMHits, s.DiskHits, s.HitRate())
	fmt.Fprintf(out, "Misses:    %d\n", s.Misses)
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	if !clearConfirm {
		return fmt.Errorf("refusing to clear cache without --yes")
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.ClearRAMCache(); err != nil {
		return err
	}
	if err := eng.ClearDiskCache(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
	return nil
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	var opts quarkdrive.CachePruneOptions
	if pruneMaxSize != "" {
		size, err := humanize.ParseBytes(pruneMaxSize)
		if err != nil {
			return fmt.Errorf("parse --max-size: %w", err)
		}
		opts.MaxSize = size
	}
	if pruneMaxAge != "" {
		age, err := time.ParseDuration(pruneMaxAge)
		if err != nil {
			return fmt.Errorf("parse --max-age: %w", err)
		}
		opts.MaxAge = age
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.PruneCache(cmd.Context(), opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries (%s), %d remaining (%s)\n",
		res.EntriesRemoved, humanize.IBytes(res.BytesRemoved),
		res.EntriesRemaining, humanize.IBytes(res.BytesRemaining))
	return nil
}
