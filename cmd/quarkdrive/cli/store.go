package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store FILE...",
	Short: "Ingest files into the storage engine",
	Long: `Ingest one or more files into the storage engine.

Each file is hashed, deduplicated against previously stored content, and
compressed. Storing a file whose bytes already exist records a new path
referencing the existing blob without writing it again.

Examples:
  quarkdrive store report.pdf
  quarkdrive store *.iso`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStore,
}

func init() {
	rootCmd.AddCommand(storeCmd)
}

func runStore(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	for _, path := range args {
		dgst, err := eng.StoreFile(path)
		if err != nil {
			return fmt.Errorf("store %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", dgst.Encoded(), path)
	}
	return nil
}
