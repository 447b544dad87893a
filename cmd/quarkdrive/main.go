// Command quarkdrive provides a CLI for the deduplicating, compressing
// storage engine and its virtual volume.
package main

import (
	"os"

	"github.com/quarkdrive/quarkdrive/cmd/quarkdrive/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
