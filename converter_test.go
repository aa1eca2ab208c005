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
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/forensicanalysis/evtx2bodyfile/eventstore"
)

func event(provider, eventID, systemTime string, data ...string) string {
	var b strings.Builder
	b.WriteString("<Event><System>")
	if provider != "" {
		b.WriteString(`<Provider Name="` + provider + `"/>`)
	}
	b.WriteString("<EventID>" + eventID + "</EventID>")
	b.WriteString(`<TimeCreated SystemTime="` + systemTime + `"/>`)
	b.WriteString("<Channel>System</Channel></System><EventData>")
	for i := 0; i+1 < len(data); i += 2 {
		b.WriteString(`<Data Name="` + data[i] + `">` + data[i+1] + "</Data>")
	}
	b.WriteString("</EventData></Event>\n")
	return b.String()
}

func events(records ...string) string {
	return "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<Events>\n" + strings.Join(records, "") + "</Events>\n"
}

const validTime = "2021-01-05 10:15:30.123456 UTC"

func newTestConverter(t *testing.T, files map[string]string) (*Converter, *bytes.Buffer, *observer.ObservedLogs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0644))
	}
	core, logs := observer.New(zap.DebugLevel)
	out := &bytes.Buffer{}
	return &Converter{Fs: fs, Out: out, Options: Options{Logger: zap.New(core)}}, out, logs
}

func lines(buf *bytes.Buffer) []string {
	s := strings.TrimSuffix(buf.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestConverterBodyfile(t *testing.T) {
	c, out, logs := newTestConverter(t, map[string]string{
		"/System.xml": events(
			event("Microsoft-Windows-Kernel-General", "12", validTime, "ProcessID", "4"),
			event("", "13", validTime),
			event("Microsoft-Windows-Kernel-General", "14", validTime),
		),
	})

	require.NoError(t, c.Convert(context.Background(), []string{"/System.xml"}))
	assert.Equal(t, []string{
		`0|Channel=System, Provider=Microsoft-Windows-Kernel-General(EventID=12): Data={"ProcessID":"4"} ActivityId=None|0|0|0|0|0|1609841730|1609841730|1609841730|1609841730`,
		`0|Channel=System, Provider=Microsoft-Windows-Kernel-General(EventID=14): Data={} ActivityId=None|0|0|0|0|0|1609841730|1609841730|1609841730|1609841730`,
	}, lines(out))
	assert.Equal(t, 1, logs.FilterMessage("skipped record").Len())
}

func TestConverterFileStats(t *testing.T) {
	c, _, _ := newTestConverter(t, map[string]string{
		"/System.xml": events(
			event("P", "1", validTime),
			event("", "2", validTime),
		),
	})

	stats, err := c.ConvertFile(context.Background(), "/System.xml")
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 2, Written: 1, Skipped: 1}, stats)
}

func TestConverterJSON(t *testing.T) {
	c, out, _ := newTestConverter(t, map[string]string{
		"/System.xml": events(event("P", "12", validTime, "ProcessID", "4", "Image", `C:\a|b.exe`)),
	})
	c.JSON = true

	require.NoError(t, c.Convert(context.Background(), []string{"/System.xml"}))
	got := lines(out)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), gjson.Get(got[0], "event_record_id").Int())
	assert.Equal(t, "2021-01-05T10:15:30Z", gjson.Get(got[0], "timestamp").String())
	assert.Equal(t, "P", gjson.Get(got[0], "provider_name").String())
	assert.Equal(t, "4", gjson.Get(got[0], "custom_data.ProcessID").String())
	assert.Equal(t, `C:\a§b.exe`, gjson.Get(got[0], "custom_data.Image").String())
}

func TestConverterIndentedText(t *testing.T) {
	c, out, _ := newTestConverter(t, map[string]string{
		"/System.xml": events(event("P", "\n    12\n  ", validTime, "Message", "first\nsecond")),
	})

	require.NoError(t, c.Convert(context.Background(), []string{"/System.xml"}))
	got := lines(out)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], `Provider=P(EventID=12): Data={"Message":"first\nsecond"}`)
}

func TestConverterFatal(t *testing.T) {
	files := map[string]string{
		"/a.xml": events(
			event("P", "1", validTime),
			event("P", "2", "2021-01-05T10:15:30.1234567Z"),
			event("P", "3", validTime),
		),
		"/b.xml": events(event("P", "4", validTime)),
	}

	t.Run("continue with next file", func(t *testing.T) {
		c, out, _ := newTestConverter(t, files)
		err := c.Convert(context.Background(), []string{"/a.xml", "/b.xml"})
		assert.True(t, IsFatal(err))
		assert.ErrorIs(t, err, ErrTimestampFormat)
		got := lines(out)
		require.Len(t, got, 2)
		assert.Contains(t, got[0], "(EventID=1)")
		assert.Contains(t, got[1], "(EventID=4)")
	})

	t.Run("stop on fatal", func(t *testing.T) {
		c, out, _ := newTestConverter(t, files)
		c.Options.StopOnFatal = true
		err := c.Convert(context.Background(), []string{"/a.xml", "/b.xml"})
		assert.True(t, IsFatal(err))
		got := lines(out)
		require.Len(t, got, 1)
		assert.Contains(t, got[0], "(EventID=1)")
	})
}

func TestConverterUnreadableFiles(t *testing.T) {
	c, out, logs := newTestConverter(t, map[string]string{
		"/broken.xml": "<Events><Event><System>",
		"/ok.xml":     events(event("P", "1", validTime)),
	})

	require.NoError(t, c.Convert(context.Background(), []string{"/missing.xml", "/broken.xml", "/ok.xml"}))
	assert.Len(t, lines(out), 1)
	assert.Equal(t, 2, logs.FilterMessage("could not convert file").Len())
}

func TestConverterCanceled(t *testing.T) {
	c, out, _ := newTestConverter(t, map[string]string{
		"/System.xml": events(event("P", "1", validTime)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Convert(ctx, []string{"/System.xml"}), context.Canceled)
	assert.Empty(t, out.String())
}

func TestConverterStore(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "events.db")
	store, err := eventstore.New(storePath, eventstore.DefaultDiscriminator)
	require.NoError(t, err)

	c, out, _ := newTestConverter(t, map[string]string{
		"/System.xml": events(
			event("P", "1", validTime, "ProcessID", "4"),
			event("P", "2", validTime),
		),
	})
	c.Store = store

	require.NoError(t, c.Convert(context.Background(), []string{"/System.xml"}))
	assert.Len(t, lines(out), 2)

	elements, err := store.Select([]map[string]string{{"event_id": "1"}})
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "4", gjson.GetBytes(elements[0], "custom_data.ProcessID").String())
	require.NoError(t, store.Close())
}

type failingSink struct {
	inserted int
}

func (s *failingSink) Insert(element eventstore.JSONElement) (string, error) {
	s.inserted++
	if gjson.GetBytes(element, "event_id").String() == "2" {
		return "", errors.New("disk full")
	}
	return "event--1", nil
}

func TestConverterSinkError(t *testing.T) {
	c, out, logs := newTestConverter(t, map[string]string{
		"/System.xml": events(
			event("P", "1", validTime),
			event("P", "2", validTime),
			event("P", "3", validTime),
		),
	})
	sink := &failingSink{}
	c.Store = sink

	require.NoError(t, c.Convert(context.Background(), []string{"/System.xml"}))
	assert.Equal(t, 3, sink.inserted)
	assert.Len(t, lines(out), 2)
	assert.Equal(t, 1, logs.FilterMessage("skipped record").Len())
}
