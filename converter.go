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

package evtx2bodyfile

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/forensicanalysis/evtx2bodyfile/eventstore"
	"github.com/forensicanalysis/evtx2bodyfile/xmlevents"
)

// Sink receives the JSON document of every converted record.
// *eventstore.Store is a Sink.
type Sink interface {
	Insert(element eventstore.JSONElement) (string, error)
}

// Converter reads event log files and writes one line per record.
type Converter struct {
	Fs  afero.Fs
	Out io.Writer
	// Progress receives a progress bar per file. Nil disables progress bars.
	Progress io.Writer
	// Store additionally receives the JSON document of every record.
	Store Sink
	// JSON selects JSON documents instead of bodyfile lines.
	JSON bool

	Options Options
}

// Stats counts the records of a single file.
type Stats struct {
	Records int64
	Written int64
	Skipped int64
}

// Convert converts all files. A file that cannot be read is logged and
// skipped. Fatal errors abort the current file, or all files if
// Options.StopOnFatal is set, and are reported by the returned error.
func (c *Converter) Convert(ctx context.Context, paths []string) error {
	opts := c.Options.withDefaults()

	var aborted []string
	var firstFatal error
	for _, path := range paths {
		stats, err := c.ConvertFile(ctx, path)
		switch {
		case err == nil:
			opts.Logger.Info("converted file", zap.String("file", path),
				zap.Int64("records", stats.Records), zap.Int64("written", stats.Written),
				zap.Int64("skipped", stats.Skipped))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case IsFatal(err):
			opts.Logger.Error("aborted file", zap.String("file", path), zap.Error(err))
			aborted = append(aborted, path)
			if firstFatal == nil {
				firstFatal = err
			}
			if opts.StopOnFatal {
				return errors.Wrapf(err, "stopped at %s", path)
			}
		default:
			opts.Logger.Error("could not convert file", zap.String("file", path), zap.Error(err))
		}
	}

	if firstFatal != nil {
		return errors.Wrapf(firstFatal, "%d of %d files aborted", len(aborted), len(paths))
	}
	return nil
}

// ConvertFile converts a single file. The file is read twice, first to count
// the records for the progress bar and then to convert them. Records are
// written up to the first xml error.
func (c *Converter) ConvertFile(ctx context.Context, path string) (stats Stats, err error) {
	opts := c.Options.withDefaults()
	logger := opts.Logger.With(zap.String("file", path))

	f, err := c.Fs.Open(path)
	if err != nil {
		return stats, errors.Wrap(err, "could not open file")
	}
	defer f.Close()

	total, err := xmlevents.Count(f)
	if err != nil {
		logger.Warn("could not count records", zap.Error(err))
		total = -1
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return stats, errors.Wrap(err, "could not rewind file")
	}

	bar := c.progressBar(total, filepath.Base(path))
	defer bar.Finish() // nolint:errcheck

	out := bufio.NewWriter(c.Out)
	defer func() {
		if ferr := out.Flush(); ferr != nil && err == nil {
			err = errors.Wrap(ferr, "could not write output")
		}
	}()

	reader := xmlevents.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record, err := reader.Next()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		stats.Records++
		_ = bar.Add(1)

		line, err := c.convertRecord(record, opts)
		if err != nil {
			if IsFatal(err) {
				return stats, errors.Wrapf(err, "record %d", record.Sequence)
			}
			logger.Warn("skipped record", zap.Uint64("record", record.Sequence), zap.Error(err))
			stats.Skipped++
			continue
		}

		if _, err := out.WriteString(line + "\n"); err != nil {
			return stats, errors.Wrap(err, "could not write output")
		}
		stats.Written++
	}
}

func (c *Converter) convertRecord(record *xmlevents.Record, opts Options) (string, error) {
	extractor := NewExtractor(opts)
	if err := record.Replay(extractor); err != nil {
		return "", err
	}
	r, err := extractor.Finish()
	if err != nil {
		return "", err
	}

	var document []byte
	if c.JSON || c.Store != nil {
		document, err = Document(r, RecordMeta{Sequence: record.Sequence, TimestampHint: record.TimestampHint}).JSON()
		if err != nil {
			return "", errors.Wrap(err, "could not encode record")
		}
	}

	if c.Store != nil {
		if _, err := c.Store.Insert(document); err != nil {
			return "", errors.Wrap(err, "could not store record")
		}
	}

	if c.JSON {
		return string(document), nil
	}
	return Bodyfile(r, opts).String(), nil
}

func (c *Converter) progressBar(total int64, description string) *progressbar.ProgressBar {
	if c.Progress == nil {
		return progressbar.DefaultSilent(total, description)
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(c.Progress),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
