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
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrMissingField is the cause of all errors about records that lack a
// mandatory field. Such records are skipped.
var ErrMissingField = errors.New("missing mandatory field")

// MissingFieldError lists the mandatory fields a record did not contain.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, strings.Join(e.Fields, ", "))
}

// Is makes MissingFieldError match ErrMissingField.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// The Extractor collects the fields of one record from a stream of enter,
// text and leave notifications. A new Extractor is needed for every record.
type Extractor struct {
	opts       Options
	stack      ancestorStack
	record     Record
	pendingKey *string
	seen       map[string]bool
}

// NewExtractor creates an Extractor for a single record.
func NewExtractor(opts Options) *Extractor {
	return &Extractor{
		opts:   opts.withDefaults(),
		record: Record{Payload: map[string]string{}},
		seen:   map[string]bool{},
	}
}

// Enter handles the start of an element. Attributes of known positions are
// assigned before the element is pushed onto the ancestor stack.
func (e *Extractor) Enter(tag string, attrs []xml.Attr) error {
	if e.stack.depth() == 0 && tag == rootTag {
		e.seen[rootTag] = true
	}
	if rule, ok := attributeRules[position{e.stack.top(), tag}]; ok {
		value, found := attribute(attrs, rule.attribute)
		if err := rule.assign(e, value, found); err != nil {
			return err
		}
	}
	e.stack.push(tag)
	return nil
}

// Text handles character content. A pending Data name consumes the value,
// otherwise it is assigned by the innermost open element.
func (e *Extractor) Text(value string) error {
	if e.pendingKey != nil {
		if value != "" {
			e.record.Payload[*e.pendingKey] = sanitize(value, e.opts.Placeholder)
		}
		e.pendingKey = nil
		return nil
	}
	if rule, ok := textRules[e.stack.top()]; ok {
		rule(e, value)
	}
	return nil
}

// Leave handles the end of an element.
func (e *Extractor) Leave(tag string) error {
	e.pendingKey = nil
	return e.stack.pop(tag)
}

// Finish returns the collected record. Records without the mandatory fields
// yield a *MissingFieldError unless Options.TolerateMissing is set.
func (e *Extractor) Finish() (Record, error) {
	record := e.record
	record.Payload = make(map[string]string, len(e.record.Payload))
	for key, value := range e.record.Payload {
		record.Payload[key] = value
	}
	if e.opts.TolerateMissing {
		return record, nil
	}

	var missing []string
	mandatory := []string{rootTag, providerTag, eventIDTag, timeCreatedTag}
	if !e.opts.SkipChannel {
		mandatory = append(mandatory, channelTag)
	}
	for _, field := range mandatory {
		if !e.seen[field] {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return Record{}, &MissingFieldError{Fields: missing}
	}
	return record, nil
}

func (e *Extractor) setTimestamp(value string) error {
	t, err := ParseSystemTime(e.opts.TimestampLayout, value)
	if err != nil {
		if !errors.Is(err, ErrTimestampDrift) || !e.opts.LenientTimestamps {
			return err
		}
		e.opts.Logger.Warn("timestamp drift", zap.String("value", value), zap.Error(err))
	}
	e.record.Timestamp = t.Unix()
	e.seen[timeCreatedTag] = true
	return nil
}
