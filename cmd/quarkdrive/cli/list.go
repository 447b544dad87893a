package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listLong bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored files",
	Long: `List the logical paths in the catalog.

With --long, also shows each file's size and content digest.

Examples:
  quarkdrive list
  quarkdrive list --long`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listLong, "long", "l", false, "show sizes and digests")
	rootCmd.AddCommand(listCmd)
}

func runList(_ *cobra.Command, _ []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	files, err := eng.Files()
	if err != nil {
		return err
	}

	if !listLong {
		for _, f := range files {
			fmt.Println(f.Path)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Path, humanize.IBytes(f.Size), f.Digest.Encoded())
	}
	return w.Flush()
}
