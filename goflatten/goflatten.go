// Copyright (c) 2019 Nguyễn Quốc Đính
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
// Author(s): Nguyễn Quốc Đính, Jonas Plum
//
// Author(s): Nguyễn Quốc Đính, Jonas Plum
//
// This code was adapted from
// https://github.com/nqd/flat/blob/master/flat.go

// Package goflatten flattens decoded JSON documents into a single level map
// with dotted keys.
package goflatten

import (
	"fmt"
	"strconv"
)

// Delimiter joins the keys of nested values.
const Delimiter = "."

// Flatten the map, it returns a map one level deep
// regardless of how nested the original map was.
// Empty maps and lists as well as null values are dropped.
func Flatten(nested map[string]interface{}) (flatmap map[string]interface{}, err error) {
	flatmap = map[string]interface{}{}
	return flatmap, flatten(flatmap, "", nested)
}

func flatten(flatmap map[string]interface{}, prefix string, nested interface{}) error {
	switch value := nested.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		for k, v := range value {
			if err := flatten(flatmap, join(prefix, k), v); err != nil {
				return err
			}
		}
	case map[string]string:
		for k, v := range value {
			flatmap[join(prefix, k)] = v
		}
	case []interface{}:
		for i, v := range value {
			if err := flatten(flatmap, join(prefix, strconv.Itoa(i)), v); err != nil {
				return err
			}
		}
	case string, bool, float64, int, int64, uint64:
		if prefix == "" {
			return fmt.Errorf("cannot flatten scalar %v without key", value)
		}
		flatmap[prefix] = value
	default:
		return fmt.Errorf("cannot flatten %T at %q", value, prefix)
	}
	return nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + Delimiter + key
}
