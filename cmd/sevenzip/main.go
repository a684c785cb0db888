// Command sevenzip lists, extracts and creates 7-Zip archives.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sevenzip",
		Short:         "Read and write 7-Zip archives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newListCommand())
	root.AddCommand(newExtractCommand())
	root.AddCommand(newCreateCommand())

	return root
}
