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
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit"
	"github.com/stretchr/testify/assert"
)

func TestBodyfile(t *testing.T) {
	activity := "{5A4E4D1C-0C2B-4B1E-9E2F-6A4F4C1E2D3B}"
	type args struct {
		r    Record
		opts Options
	}
	tests := []struct {
		name string
		args args
		want string
	}{
		{"kernel general", args{Record{
			Timestamp: 1609841730, EventID: "12", ProviderName: "Microsoft-Windows-Kernel-General",
			ChannelName: "System", Payload: map[string]string{"ProcessID": "4"},
		}, Options{}}, `0|Channel=System, Provider=Microsoft-Windows-Kernel-General(EventID=12): Data={"ProcessID":"4"} ActivityId=None|0|0|0|0|0|1609841730|1609841730|1609841730|1609841730`},
		{"activity id", args{Record{
			Timestamp: 1, EventID: "4624", ProviderName: "Microsoft-Windows-Security-Auditing",
			ChannelName: "Security", ActivityID: &activity, Payload: map[string]string{},
		}, Options{}}, `0|Channel=Security, Provider=Microsoft-Windows-Security-Auditing(EventID=4624): Data={} ActivityId={5A4E4D1C-0C2B-4B1E-9E2F-6A4F4C1E2D3B}|0|0|0|0|0|1|1|1|1`},
		{"minimal", args{Record{
			Timestamp: 1, EventID: "1", ProviderName: "P", ChannelName: "ignored", ActivityID: &activity,
		}, MinimalOptions()}, `0|Provider=P(EventID=1): Data={}|0|0|0|0|0|1|1|1|1`},
		{"sorted unescaped payload", args{Record{
			EventID: "1", ProviderName: "P", ChannelName: "C",
			Payload: map[string]string{"b": "<x>", "a": "1&2"},
		}, Options{}}, `0|Channel=C, Provider=P(EventID=1): Data={"a":"1&2","b":"<x>"} ActivityId=None|0|0|0|0|0|0|0|0|0`},
		{"delimiter in fields", args{Record{
			EventID: "1", ProviderName: "P|Q", ChannelName: "C|D",
			Payload: map[string]string{"Path": `C:\Users\a|b`},
		}, Options{}}, `0|Channel=C§D, Provider=P§Q(EventID=1): Data={"Path":"C:\\Users\\a§b"} ActivityId=None|0|0|0|0|0|0|0|0|0`},
		{"line breaks in fields", args{Record{
			EventID: "1", ProviderName: "P\r\nQ", ChannelName: "C\nD",
			Payload: map[string]string{"Message": "a\nb"},
		}, Options{}}, `0|Channel=C D, Provider=P Q(EventID=1): Data={"Message":"a\nb"} ActivityId=None|0|0|0|0|0|0|0|0|0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bodyfile(tt.args.r, tt.args.opts).String())
		})
	}
}

func TestBodyfileFields(t *testing.T) {
	gofakeit.Seed(0)
	for i := 0; i < 100; i++ {
		r := Record{
			Timestamp:    gofakeit.Int64(),
			EventID:      gofakeit.Numerify("####"),
			ProviderName: gofakeit.Sentence(3) + "|",
			ChannelName:  gofakeit.Word(),
			Payload: map[string]string{
				gofakeit.Word():        gofakeit.Sentence(5) + "|",
				gofakeit.HipsterWord(): gofakeit.URL(),
			},
		}
		fields := strings.Split(Bodyfile(r, Options{}).String(), "|")
		if assert.Len(t, fields, 11) {
			assert.Equal(t, fields[7], fields[8])
			assert.Equal(t, fields[7], fields[9])
			assert.Equal(t, fields[7], fields[10])
		}
	}
}
