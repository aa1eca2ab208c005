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

// Package evtx2bodyfile converts Windows event log records into bodyfile
// lines for timeline tools like mactime or into json documents for bulk
// ingestion into elasticsearch.
//
// Extraction
//
// Records are read as a stream of enter, text and leave notifications. The
// Extractor keeps the stack of open elements and picks the fields of a record
// by the position of an element:
//     Event/System/Provider@Name          provider name
//     Event/System/EventID                event id
//     Event/System/TimeCreated@SystemTime timestamp
//     Event/System/Channel                channel
//     Event/System/Correlation@ActivityID activity id
//     Event/System/EventRecordID          record id
//     Event/EventData/Data@Name           payload key, the text is the value
//
// Output
//
// A bodyfile line has eleven fields separated by "|". All four timestamps are
// the record creation time and the name field describes the record:
//     0|Channel=System, Provider=Microsoft-Windows-Kernel-General(EventID=12): Data={"ProcessID":"4"} ActivityId=None|0|0|0|0|0|1609841730|1609841730|1609841730|1609841730
// A "|" in any extracted value is replaced by "§".
package evtx2bodyfile
