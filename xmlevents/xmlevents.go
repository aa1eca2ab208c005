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

// Package xmlevents reads XML renderings of Windows event logs, as written by
// "wevtutil qe /f:xml" or "evtx_dump -o xml", and replays every <Event>
// element as a sequence of enter, text and leave notifications.
package xmlevents

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// RecordTag is the element that encloses a single record.
const RecordTag = "Event"

// Handler receives the content of one record.
type Handler interface {
	Enter(tag string, attrs []xml.Attr) error
	Text(value string) error
	Leave(tag string) error
}

type tokenKind int

const (
	enterToken tokenKind = iota
	textToken
	leaveToken
)

type token struct {
	kind  tokenKind
	name  string
	attrs []xml.Attr
	text  string
}

// A Record is a buffered <Event> element.
type Record struct {
	// Sequence is System/EventRecordID or, if that is missing, the position
	// of the record in the input starting at 1.
	Sequence uint64
	// TimestampHint is TimeCreated@SystemTime parsed without a fixed layout.
	// It is zero if the value could not be parsed.
	TimestampHint time.Time

	tokens []token
}

// Replay sends the record content to h. It stops at the first error.
func (r *Record) Replay(h Handler) error {
	for _, t := range r.tokens {
		var err error
		switch t.kind {
		case enterToken:
			err = h.Enter(t.name, t.attrs)
		case textToken:
			err = h.Text(t.text)
		case leaveToken:
			err = h.Leave(t.name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Reader splits an XML stream into records.
type Reader struct {
	decoder *xml.Decoder
	count   uint64
}

// NewReader creates a Reader. UTF-16 input with byte order mark is converted
// to UTF-8.
func NewReader(r io.Reader) *Reader {
	utf8 := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	decoder := xml.NewDecoder(utf8)
	decoder.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		if strings.HasPrefix(strings.ToLower(label), "utf-16") {
			return input, nil // already converted
		}
		return nil, errors.Errorf("unsupported charset %s", label)
	}
	return &Reader{decoder: decoder}
}

// Next returns the next record or io.EOF.
func (r *Reader) Next() (*Record, error) {
	for {
		t, err := r.decoder.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, errors.Wrap(err, "could not read xml")
		}
		if start, ok := t.(xml.StartElement); ok && start.Name.Local == RecordTag {
			r.count++
			return r.readRecord(start)
		}
	}
}

func (r *Reader) readRecord(start xml.StartElement) (*Record, error) {
	record := &Record{Sequence: r.count}
	var parents []string
	var text strings.Builder

	flush := func() {
		if text.Len() == 0 {
			return
		}
		value := text.String()
		text.Reset()
		if isIndentation(value) {
			return
		}
		record.tokens = append(record.tokens, token{kind: textToken, text: value})
		if len(parents) >= 2 && parents[len(parents)-2] == "System" && parents[len(parents)-1] == "EventRecordID" {
			if id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64); err == nil {
				record.Sequence = id
			}
		}
	}

	enter := func(e xml.StartElement) {
		flush()
		attrs := make([]xml.Attr, len(e.Attr))
		copy(attrs, e.Attr)
		record.tokens = append(record.tokens, token{kind: enterToken, name: e.Name.Local, attrs: attrs})
		if len(parents) > 0 && parents[len(parents)-1] == "System" && e.Name.Local == "TimeCreated" {
			record.TimestampHint = timestampHint(attrs)
		}
		parents = append(parents, e.Name.Local)
	}

	enter(start)
	for len(parents) > 0 {
		t, err := r.decoder.Token()
		if err == io.EOF {
			return nil, errors.Wrapf(io.ErrUnexpectedEOF, "record %d", r.count)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "could not read record %d", r.count)
		}
		switch t := t.(type) {
		case xml.StartElement:
			enter(t)
		case xml.EndElement:
			flush()
			record.tokens = append(record.tokens, token{kind: leaveToken, name: t.Name.Local})
			parents = parents[:len(parents)-1]
		case xml.CharData:
			text.Write(t)
		}
	}
	return record, nil
}

// Count reads all records from r and returns their number.
func Count(r io.Reader) (int64, error) {
	reader := NewReader(r)
	var n int64
	for {
		_, err := reader.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// isIndentation reports whether s is whitespace between elements of pretty
// printed XML.
func isIndentation(s string) bool {
	return strings.TrimSpace(s) == "" && strings.ContainsAny(s, "\r\n")
}

func timestampHint(attrs []xml.Attr) time.Time {
	for _, attr := range attrs {
		if attr.Name.Local != "SystemTime" {
			continue
		}
		t, err := dateparse.ParseIn(attr.Value, time.UTC)
		if err != nil {
			return time.Time{}
		}
		return t.UTC()
	}
	return time.Time{}
}
