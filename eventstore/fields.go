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

package eventstore

import (
	"sync"
)

// fieldMap records the flattened fields per discriminator value.
type fieldMap struct {
	sync.RWMutex
	changed bool
	fields  map[string]map[string]bool
}

func newFieldMap() *fieldMap {
	return &fieldMap{
		changed: false,
		fields:  map[string]map[string]bool{},
	}
}

func (fm *fieldMap) all() map[string]map[string]bool {
	fm.RLock()
	defer fm.RUnlock()
	return fm.fields
}

func (fm *fieldMap) addAll(name string, fields map[string]interface{}) {
	fm.Lock()
	if _, ok := fm.fields[name]; !ok {
		fm.fields[name] = map[string]bool{}
	}
	for field := range fields {
		if _, ok := fm.fields[name][field]; !ok {
			fm.fields[name][field] = true
			fm.changed = true
		}
	}
	fm.Unlock()
}
