// Copyright (c) 2019 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package cmd

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/evtx2bodyfile/sqlar"
)

// Archive is the evtx2bodyfile archive subcommand to bundle event logs in
// SQLite archives, which can be converted with --archive.
func Archive() *cobra.Command {
	archiveCommand := &cobra.Command{
		Use:   "archive",
		Short: "Bundle event logs in a SQLite archive",
	}
	archiveCommand.AddCommand(packCommand(), lsCommand())
	return archiveCommand
}

func packCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "pack <archive> <file>...",
		Short:         "Add files to the SQLite archive",
		Args:          cobra.MinimumNArgs(2), //nolint:gomnd
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			destFS, err := sqlar.New(args[0])
			if err != nil {
				return err
			}
			defer destFS.Close()

			for _, arg := range args[1:] {
				name := filepath.ToSlash(arg)
				fmt.Fprintln(cmd.OutOrStdout(), "pack", name)
				if err := pack(afero.NewOsFs(), destFS, arg, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func pack(srcFS, destFS afero.Fs, src, dest string) error {
	srcFile, err := srcFS.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}
	if err := destFS.MkdirAll(path.Dir("/"+dest), 0755); err != nil {
		return err
	}
	destFile, err := destFS.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(destFile, srcFile); err != nil {
		destFile.Close() // nolint:errcheck
		return err
	}
	if err := destFile.Close(); err != nil {
		return err
	}
	return destFS.Chtimes(dest, info.ModTime(), info.ModTime())
}

func lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "ls <archive>",
		Short:         "List files in the SQLite archive",
		Args:          cobra.ExactArgs(1), //nolint:gomnd
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			fs, err := sqlar.New(args[0])
			if err != nil {
				return err
			}
			defer fs.Close()

			return afero.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() {
					fmt.Fprintln(cmd.OutOrStdout(), filepath.ToSlash(path))
				}
				return nil
			})
		},
	}
}
