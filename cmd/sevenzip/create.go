package main

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go7z/sevenzip"
)

func newCreateCommand() *cobra.Command {
	var (
		password string
		method   string
	)

	cmd := &cobra.Command{
		Use:   "create <archive> <path>...",
		Short: "Create a 7z archive",
		Args:  cobra.MinimumNArgs(2), //nolint:mnd
		RunE: func(_ *cobra.Command, args []string) error {
			out, err := os.OpenFile(args[0], os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) //nolint:mnd
			if err != nil {
				return err
			}
			defer out.Close()

			opts := []sevenzip.Option{sevenzip.WithCompressionMethod(method)}

			zw, err := sevenzip.NewWriterWithPassword(out, password, opts...)
			if err != nil {
				return err
			}

			for _, root := range args[1:] {
				if err := addPath(zw, root); err != nil {
					return err
				}
			}

			return zw.Close()
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "archive password")
	cmd.Flags().StringVarP(&method, "method", "m", "lzma2", "compression method: lzma2, deflate, copy")

	return cmd
}

func addPath(zw *sevenzip.Writer, root string) error {
	base := filepath.Dir(root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		fh := &sevenzip.FileHeader{
			Name:     filepath.ToSlash(rel),
			Modified: info.ModTime(),
		}

		if d.IsDir() {
			const msdosDirAttribute = 0x10
			fh.Attributes = msdosDirAttribute
		}

		w, err := zw.CreateHeader(fh)
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		in, err := os.Open(path) //nolint:gosec
		if err != nil {
			return err
		}
		defer in.Close()

		_, err = io.Copy(w, in)

		return err
	})
}
