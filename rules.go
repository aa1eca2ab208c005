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
	"encoding/xml"
	"strings"
)

const (
	rootTag          = "Event"
	systemTag        = "System"
	eventDataTag     = "EventData"
	providerTag      = "Provider"
	timeCreatedTag   = "TimeCreated"
	correlationTag   = "Correlation"
	dataTag          = "Data"
	eventIDTag       = "EventID"
	channelTag       = "Channel"
	eventRecordIDTag = "EventRecordID"
)

// position is an element together with its parent.
type position struct {
	parent string
	tag    string
}

// attributeRule assigns an attribute of an element at a known position.
// assign is called even if the attribute is missing, found is false then.
type attributeRule struct {
	attribute string
	assign    func(e *Extractor, value string, found bool) error
}

// textRule assigns the character content of the innermost open element.
type textRule func(e *Extractor, value string)

var attributeRules = map[position]attributeRule{
	{systemTag, providerTag}: {"Name", func(e *Extractor, value string, found bool) error {
		if found {
			e.record.ProviderName = value
			e.seen[providerTag] = true
		}
		return nil
	}},
	{systemTag, timeCreatedTag}: {"SystemTime", func(e *Extractor, value string, found bool) error {
		if !found {
			return nil
		}
		return e.setTimestamp(value)
	}},
	{systemTag, correlationTag}: {"ActivityID", func(e *Extractor, value string, found bool) error {
		if found && !e.opts.SkipActivityID {
			e.record.ActivityID = &value
		}
		return nil
	}},
	{eventDataTag, dataTag}: {"Name", func(e *Extractor, value string, found bool) error {
		if !found {
			value = e.opts.BinaryKey
		}
		e.pendingKey = &value
		return nil
	}},
}

var textRules = map[string]textRule{
	eventIDTag: func(e *Extractor, value string) {
		e.record.EventID = strings.TrimSpace(value)
		e.seen[eventIDTag] = true
	},
	channelTag: func(e *Extractor, value string) {
		if e.opts.SkipChannel {
			return
		}
		e.record.ChannelName = strings.TrimSpace(value)
		e.seen[channelTag] = true
	},
	eventRecordIDTag: func(e *Extractor, value string) {
		e.record.RecordID = strings.TrimSpace(value)
	},
}

// attribute returns the first attribute with the given local name.
func attribute(attrs []xml.Attr, name string) (string, bool) {
	for _, attr := range attrs {
		if attr.Name.Local == name {
			return attr.Value, true
		}
	}
	return "", false
}

func sanitize(value, placeholder string) string {
	return strings.ReplaceAll(value, "|", placeholder)
}
