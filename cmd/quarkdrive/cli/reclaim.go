package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var reclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Delete blobs with no remaining references",
	Long: `Delete every blob whose reference count has reached zero.

Blob files, their cache entries, and their catalog rows are removed. This
is the only operation that deletes blob data; 'rm' alone never does.`,
	Args: cobra.NoArgs,
	RunE: runReclaim,
}

func init() {
	rootCmd.AddCommand(reclaimCmd)
}

func runReclaim(cmd *cobra.Command, _ []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.Reclaim(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d blobs (%s)\n",
		res.BlobsRemoved, humanize.IBytes(res.BytesFreed))
	return nil
}
