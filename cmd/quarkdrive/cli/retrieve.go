package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve PATH OUTPUT",
	Short: "Restore a stored file to a local path",
	Long: `Restore the contents of a stored logical path to a local file.

The read goes through the hybrid cache; on a miss the blob is decompressed
from the store and promoted into the cache.

Examples:
  quarkdrive retrieve report.pdf ./restored.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(_ *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.RetrieveFile(args[0], args[1]); err != nil {
		return fmt.Errorf("retrieve %s: %w", args[0], err)
	}
	return nil
}
