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
	"bytes"
	"fmt"
	"strings"
)

// BodyfileLine is a line of the bodyfile 3.x format used by mactime and
// other timeline tools.
type BodyfileLine struct {
	MD5   string
	Name  string
	Inode uint64
	Mode  string
	UID   uint32
	GID   uint32
	Size  uint64
	Atime int64
	Mtime int64
	Ctime int64
	// Crtime is the creation time.
	Crtime int64
}

// NewBodyfileLine creates a line whose four timestamps are all set to
// timestamp. Event log records only carry a single time.
func NewBodyfileLine(name string, timestamp int64) BodyfileLine {
	return BodyfileLine{
		MD5:    "0",
		Name:   name,
		Mode:   "0",
		Atime:  timestamp,
		Mtime:  timestamp,
		Ctime:  timestamp,
		Crtime: timestamp,
	}
}

func (l BodyfileLine) String() string {
	return fmt.Sprintf("%s|%s|%d|%s|%d|%d|%d|%d|%d|%d|%d",
		l.MD5, l.Name, l.Inode, l.Mode, l.UID, l.GID, l.Size,
		l.Atime, l.Mtime, l.Ctime, l.Crtime)
}

// newlines keeps every record on a single line.
var newlines = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Bodyfile renders a record as bodyfile line. The name column summarizes
// channel, provider, event id, payload and activity id.
func Bodyfile(r Record, opts Options) BodyfileLine {
	opts = opts.withDefaults()
	clean := func(s string) string { return sanitize(newlines.Replace(s), opts.Placeholder) }

	var name bytes.Buffer
	if !opts.SkipChannel {
		fmt.Fprintf(&name, "Channel=%s, ", clean(r.ChannelName))
	}
	fmt.Fprintf(&name, "Provider=%s(EventID=%s): Data=%s",
		clean(r.ProviderName), clean(r.EventID), clean(compactJSON(r.Payload)))
	if !opts.SkipActivityID {
		fmt.Fprintf(&name, " ActivityId=%s", clean(r.activity()))
	}

	return NewBodyfileLine(name.String(), r.Timestamp)
}

// compactJSON encodes the payload as single line JSON object with sorted keys.
func compactJSON(payload map[string]string) string {
	if payload == nil {
		payload = map[string]string{}
	}
	b, err := marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(b)
}
