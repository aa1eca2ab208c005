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
	"context"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/forensicanalysis/evtx2bodyfile"
	"github.com/forensicanalysis/evtx2bodyfile/eventstore"
	"github.com/forensicanalysis/evtx2bodyfile/sqlar"
)

// Root is the evtx2bodyfile command. It converts the given event log files,
// optionally read from a SQLite archive, and has subcommands to query event
// stores and to create archives.
func Root() *cobra.Command {
	var jsonOutput, minimal, lenient, stopOnError, noProgress, quiet bool
	var verbose int
	var storePath, archivePath, timeFormat string

	rootCmd := &cobra.Command{
		Use:           "evtx2bodyfile <file>...",
		Short:         "Convert event logs into bodyfile lines or json documents",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			logger := newLogger(cmd.ErrOrStderr(), verbose, quiet)
			defer logger.Sync() // nolint:errcheck

			opts := evtx2bodyfile.Options{}
			if minimal {
				opts = evtx2bodyfile.MinimalOptions()
			}
			opts.LenientTimestamps = lenient
			opts.StopOnFatal = stopOnError
			opts.TimestampLayout = timeFormat
			opts.Logger = logger

			converter := &evtx2bodyfile.Converter{
				Fs:      afero.NewOsFs(),
				Out:     cmd.OutOrStdout(),
				JSON:    jsonOutput,
				Options: opts,
			}
			if !noProgress && !quiet {
				converter.Progress = cmd.ErrOrStderr()
			}

			if archivePath != "" {
				if _, err := os.Stat(archivePath); err != nil {
					return err
				}
				archive, err := sqlar.New(archivePath)
				if err != nil {
					return err
				}
				defer archive.Close()
				converter.Fs = archive
			}

			if storePath != "" {
				store, err := eventstore.New(storePath, eventstore.DefaultDiscriminator)
				if err != nil {
					return err
				}
				defer func() {
					if cerr := store.Close(); cerr != nil && err == nil {
						err = cerr
					}
				}()
				converter.Store = store
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return converter.Convert(ctx, args)
		},
	}

	rootCmd.Flags().BoolVarP(&jsonOutput, "json", "J", false, "output json for elasticsearch instead of bodyfile")
	rootCmd.Flags().BoolVar(&minimal, "minimal", false, "ignore channel and activity id and keep records with missing fields")
	rootCmd.Flags().BoolVar(&lenient, "lenient-timestamps", false, "warn instead of abort if a timestamp does not round trip")
	rootCmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "abort all files on the first fatal error")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not show progress bars")
	rootCmd.Flags().StringVar(&storePath, "store", "", "additionally insert all json documents into a new event store")
	rootCmd.Flags().StringVar(&archivePath, "archive", "", "read the files from a SQLite archive")
	rootCmd.Flags().StringVar(&timeFormat, "time-format", evtx2bodyfile.DefaultTimestampLayout, "go time layout of TimeCreated/@SystemTime")
	rootCmd.Flags().CountVarP(&verbose, "verbose", "v", "more log output, can be repeated")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no log output")

	rootCmd.AddCommand(Store(), Archive())
	return rootCmd
}

// newLogger logs errors by default, -v adds warnings, -vv info and -vvv
// debug messages.
func newLogger(w io.Writer, verbose int, quiet bool) *zap.Logger {
	if quiet {
		return zap.NewNop()
	}
	level := zapcore.ErrorLevel - zapcore.Level(verbose)
	if level < zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), level))
}
