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
	"github.com/pkg/errors"
)

// ErrUnbalanced is returned when the event stream closes more elements than
// it opened or closes an element that is not the innermost open one.
var ErrUnbalanced = errors.New("unbalanced element stream")

// ancestorStack holds the names of all open elements, root first.
type ancestorStack struct {
	tags []string
}

func (s *ancestorStack) push(tag string) {
	s.tags = append(s.tags, tag)
}

func (s *ancestorStack) pop(tag string) error {
	if len(s.tags) == 0 {
		return errors.Wrapf(ErrUnbalanced, "leave %s without open element", tag)
	}
	last := s.tags[len(s.tags)-1]
	if last != tag {
		return errors.Wrapf(ErrUnbalanced, "leave %s while %s is open", tag, last)
	}
	s.tags = s.tags[:len(s.tags)-1]
	return nil
}

// top returns the innermost open element or "" at document level.
func (s *ancestorStack) top() string {
	if len(s.tags) == 0 {
		return ""
	}
	return s.tags[len(s.tags)-1]
}

func (s *ancestorStack) depth() int {
	return len(s.tags)
}
