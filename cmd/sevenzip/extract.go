package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go7z/sevenzip"
)

func newExtractCommand() *cobra.Command {
	var (
		password string
		destDir  string
	)

	cmd := &cobra.Command{
		Use:   "extract <archive>",
		Short: "Extract a 7z archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rc, err := sevenzip.OpenReaderWithPassword(args[0], password)
			if err != nil {
				return err
			}
			defer rc.Close()

			for _, f := range rc.File {
				if err := extractEntry(destDir, f); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "archive password")
	cmd.Flags().StringVarP(&destDir, "output", "o", ".", "destination directory")

	return cmd
}

func extractEntry(destDir string, f *sevenzip.File) error {
	target := filepath.Join(destDir, filepath.FromSlash(f.Name)) //nolint:gosec

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755) //nolint:mnd
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:mnd
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)

	return err
}
