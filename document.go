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
	"encoding/json"
	"strconv"
	"time"
)

// RecordMeta is the information the decoder provides next to the record
// content.
type RecordMeta struct {
	Sequence      uint64
	TimestampHint time.Time
}

// EventDocument is the JSON representation of a record for bulk ingestion
// into a search index. The payload is nested under custom_data.
type EventDocument struct {
	EventRecordID uint64            `json:"event_record_id"`
	Timestamp     string            `json:"timestamp"`
	EventID       string            `json:"event_id"`
	ProviderName  string            `json:"provider_name"`
	ChannelName   string            `json:"channel_name"`
	ActivityID    *string           `json:"activity_id"`
	CustomData    map[string]string `json:"custom_data"`
}

// Document converts a record into an EventDocument. The record id is
// System/EventRecordID and falls back to the decoder sequence, the timestamp
// falls back to the decoder hint.
func Document(r Record, meta RecordMeta) EventDocument {
	recordID, err := strconv.ParseUint(r.RecordID, 10, 64)
	if err != nil {
		recordID = meta.Sequence
	}

	timestamp := r.Time()
	if r.Timestamp == 0 && !meta.TimestampHint.IsZero() {
		timestamp = meta.TimestampHint.UTC()
	}

	customData := r.Payload
	if customData == nil {
		customData = map[string]string{}
	}

	return EventDocument{
		EventRecordID: recordID,
		Timestamp:     timestamp.Format(time.RFC3339),
		EventID:       r.EventID,
		ProviderName:  r.ProviderName,
		ChannelName:   r.ChannelName,
		ActivityID:    r.ActivityID,
		CustomData:    customData,
	}
}

// JSON encodes the document as a single line. HTML characters are not
// escaped, like in the bodyfile payload.
func (d EventDocument) JSON() ([]byte, error) {
	return marshal(d)
}

func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
