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

package xmlevents

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

const twoEvents = `<?xml version="1.0" encoding="utf-8"?>
<Events>
  <Event xmlns="http://schemas.microsoft.com/win/2004/08/events/event">
    <System>
      <Provider Name="Microsoft-Windows-Kernel-General"/>
      <TimeCreated SystemTime="2021-01-05 10:15:30.123456 UTC"/>
      <EventRecordID>7</EventRecordID>
    </System>
    <EventData>
      <Data Name="Text">a &amp; b</Data>
      <Data Name="Space"> </Data>
    </EventData>
  </Event>
  <Event>
    <System>
      <TimeCreated SystemTime="not a time"/>
    </System>
  </Event>
</Events>
`

// recorder writes the notifications as lines.
type recorder struct {
	lines []string
}

func (r *recorder) Enter(tag string, attrs []xml.Attr) error {
	line := "enter " + tag
	for _, attr := range attrs {
		line += fmt.Sprintf(" %s=%s", attr.Name.Local, attr.Value)
	}
	r.lines = append(r.lines, line)
	return nil
}

func (r *recorder) Text(value string) error {
	r.lines = append(r.lines, "text "+value)
	return nil
}

func (r *recorder) Leave(tag string) error {
	r.lines = append(r.lines, "leave "+tag)
	return nil
}

func readAll(t *testing.T, r io.Reader) []*Record {
	t.Helper()
	reader := NewReader(r)
	var records []*Record
	for {
		record, err := reader.Next()
		if err == io.EOF {
			return records
		}
		require.NoError(t, err)
		records = append(records, record)
	}
}

func TestReader(t *testing.T) {
	records := readAll(t, strings.NewReader(twoEvents))
	require.Len(t, records, 2)

	assert.Equal(t, uint64(7), records[0].Sequence)
	assert.True(t, time.Date(2021, 1, 5, 10, 15, 30, 123456000, time.UTC).Equal(records[0].TimestampHint))
	assert.Equal(t, uint64(2), records[1].Sequence)
	assert.True(t, records[1].TimestampHint.IsZero())

	r := &recorder{}
	require.NoError(t, records[0].Replay(r))
	assert.Equal(t, []string{
		"enter Event xmlns=http://schemas.microsoft.com/win/2004/08/events/event",
		"enter System",
		"enter Provider Name=Microsoft-Windows-Kernel-General",
		"leave Provider",
		"enter TimeCreated SystemTime=2021-01-05 10:15:30.123456 UTC",
		"leave TimeCreated",
		"enter EventRecordID",
		"text 7",
		"leave EventRecordID",
		"leave System",
		"enter EventData",
		"enter Data Name=Text",
		"text a & b",
		"leave Data",
		"enter Data Name=Space",
		"text  ",
		"leave Data",
		"leave EventData",
		"leave Event",
	}, r.lines)
}

func TestReaderSingleEvent(t *testing.T) {
	records := readAll(t, strings.NewReader(`<Event><System><EventID>1</EventID></System></Event>`))
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1), records[0].Sequence)
}

func TestReaderUTF16(t *testing.T) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(
		strings.Replace(twoEvents, "utf-8", "utf-16", 1))
	require.NoError(t, err)

	records := readAll(t, bytes.NewBufferString(encoded))
	require.Len(t, records, 2)
	assert.Equal(t, uint64(7), records[0].Sequence)
}

func TestReaderTruncated(t *testing.T) {
	reader := NewReader(strings.NewReader(`<Events><Event><System><EventID>1</EventID></System></Event><Event><System>`))
	_, err := reader.Next()
	require.NoError(t, err)
	_, err = reader.Next()
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestReplayStops(t *testing.T) {
	records := readAll(t, strings.NewReader(twoEvents))
	require.NotEmpty(t, records)
	stop := fmt.Errorf("stop")
	assert.Equal(t, stop, records[0].Replay(failingHandler{stop}))
}

type failingHandler struct{ err error }

func (h failingHandler) Enter(string, []xml.Attr) error { return h.err }
func (h failingHandler) Text(string) error              { return h.err }
func (h failingHandler) Leave(string) error             { return h.err }

func TestCount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"two events", twoEvents, 2, false},
		{"empty", "", 0, false},
		{"no events", "<Events></Events>", 0, false},
		{"truncated", "<Events><Event>", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Count(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("Count() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
