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
	"github.com/imdario/mergo"
	"go.uber.org/zap"
)

// DefaultTimestampLayout matches SystemTime values like
// "2021-01-05 10:15:30.123456 UTC".
const DefaultTimestampLayout = "2006-01-02 15:04:05.000000 MST"

// Options select the extractor variant and the driver policies. The zero
// value is the extended variant: channel and activity id are tracked, missing
// mandatory fields skip the record and timestamp drift is fatal.
type Options struct {
	// SkipChannel disables tracking of the Channel element.
	SkipChannel bool
	// SkipActivityID disables tracking of Correlation@ActivityID.
	SkipActivityID bool
	// TolerateMissing emits records with empty mandatory fields instead of
	// skipping them.
	TolerateMissing bool
	// LenientTimestamps logs a warning when a SystemTime value does not
	// re-encode to the same text instead of aborting.
	LenientTimestamps bool
	// StopOnFatal aborts the whole run on the first fatal error instead of
	// only the current file.
	StopOnFatal bool

	// TimestampLayout is the Go time layout of TimeCreated@SystemTime.
	TimestampLayout string
	// Placeholder replaces the bodyfile delimiter inside collected text.
	Placeholder string
	// BinaryKey is the payload key for Data elements without a Name.
	BinaryKey string

	Logger *zap.Logger
}

// MinimalOptions returns the options of the minimal variant which only
// tracks provider, event id, timestamp and payload.
func MinimalOptions() Options {
	return Options{SkipChannel: true, SkipActivityID: true, TolerateMissing: true}
}

func defaultOptions() Options {
	return Options{
		TimestampLayout: DefaultTimestampLayout,
		Placeholder:     "§",
		BinaryKey:       "binary",
	}
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if err := mergo.Merge(&o, defaultOptions()); err != nil {
		o.Logger.Warn("could not apply default options", zap.Error(err))
	}
	return o
}
