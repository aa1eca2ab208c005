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
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrTimestampFormat is returned if a SystemTime value does not match the
	// configured layout. The input is most likely not of the expected version.
	ErrTimestampFormat = errors.New("unexpected timestamp format")
	// ErrTimestampDrift is returned if a parsed SystemTime value does not
	// format back to its original text.
	ErrTimestampDrift = errors.New("timestamp does not round trip")
)

// IsFatal reports whether err must abort the processing of the current file.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTimestampFormat) || errors.Is(err, ErrTimestampDrift)
}

// ParseSystemTime parses value with layout and checks that formatting the
// result with the same layout reproduces value byte for byte. On drift the
// parsed time is returned together with ErrTimestampDrift.
func ParseSystemTime(layout, value string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrTimestampFormat, "%q does not match %q (%s)", value, layout, err)
	}
	if formatted := t.Format(layout); formatted != value {
		return t.UTC(), errors.Wrapf(ErrTimestampDrift, "%q formats as %q", value, formatted)
	}
	return t.UTC(), nil
}
