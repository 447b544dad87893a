package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm PATH...",
	Short: "Remove stored files",
	Long: `Remove one or more logical paths from the catalog.

Removing a path decrements its blob's reference count. Blobs whose count
reaches zero are retained until an explicit 'quarkdrive reclaim'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRm,
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func runRm(_ *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	for _, path := range args {
		if err := eng.RemoveFile(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}
