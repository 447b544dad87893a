package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage and cache statistics",
	Long: `Display engine statistics: file and blob counts, deduplication and
compression savings, and hybrid cache usage.

Examples:
  quarkdrive stats`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, _ []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	s, err := eng.Stats()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Files:\t%d\n", s.TotalFiles)
	fmt.Fprintf(w, "Unique blobs:\t%d\n", s.TotalBlobs)
	fmt.Fprintf(w, "Deduplicated blobs:\t%d\n", s.DuplicatedBlobs)
	fmt.Fprintf(w, "Logical size:\t%s\n", humanize.IBytes(s.TotalOriginalBytes))
	fmt.Fprintf(w, "Stored size:\t%s\n", humanize.IBytes(s.TotalCompressedBytes))
	fmt.Fprintf(w, "Space saved:\t%s (%.1f%%)\n", humanize.IBytes(s.SpaceSavedBytes), s.CompressionRatio)
	fmt.Fprintf(w, "RAM cache:\t%s of %s (%.1f%%)\n",
		humanize.IBytes(s.Cache.RAMSize), humanize.IBytes(s.Cache.RAMBudget), s.Cache.RAMUsagePercent)
	fmt.Fprintf(w, "Disk cache:\t%s\n", humanize.IBytes(s.Cache.DiskSize))
	fmt.Fprintf(w, "Cache hits:\t%d RAM, %d disk (%.1f%% hit rate)\n",
		s.Cache.RAMHits, s.Cache.DiskHits, s.Cache.HitRate())
	fmt.Fprintf(w, "Cache misses:\t%d\n", s.Cache.Misses)
	return w.Flush()
}
