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
)

// A Record holds the fields extracted from a single event log record. It is
// returned by Extractor.Finish and not modified afterwards.
type Record struct {
	// RecordID is the text of System/EventRecordID, if present.
	RecordID string
	// Timestamp is TimeCreated@SystemTime in seconds since the epoch (UTC).
	Timestamp    int64
	EventID      string
	ProviderName string
	ChannelName  string
	// ActivityID is nil if the record has no correlation activity.
	ActivityID *string
	Payload    map[string]string
}

// Time returns the record timestamp as UTC time.
func (r Record) Time() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

func (r Record) activity() string {
	if r.ActivityID == nil {
		return "None"
	}
	return *r.ActivityID
}
