package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go7z/sevenzip"
)

func newListCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List the contents of a 7z archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := sevenzip.OpenReaderWithPassword(args[0], password)
			if err != nil {
				return err
			}
			defer rc.Close()

			for _, f := range rc.File {
				fmt.Fprintf(cmd.OutOrStdout(), "%10d  %s  %s\n", //nolint:errcheck
					f.UncompressedSize, f.Modified.Format("2006-01-02 15:04:05"), f.Name)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "archive password")

	return cmd
}
