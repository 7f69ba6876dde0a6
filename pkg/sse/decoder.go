// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sse decodes blank-line delimited server-sent event streams.
//
// The decoder is fed byte chunks whose boundaries have nothing to do with
// the framing. It buffers input and emits a Frame each time the delimiter
// "\n\n" is found. Decoding is sequential and one Decoder serves exactly
// one stream.
package sse

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
)

const (
	// Delimiter terminates a frame.
	Delimiter = "\n\n"

	// DoneSentinel is a payload that terminates a stream. It is never
	// parsed as structured data.
	DoneSentinel = "[DONE]"

	// FieldData and FieldEvent are the recognized field prefixes.
	FieldData  = "data"
	FieldEvent = "event"

	readChunkSize = 4096
)

var (
	delimiter = []byte(Delimiter)
	crlf      = []byte("\r\n")
	lf        = []byte("\n")
)

// Frame is one complete blank-line delimited unit of a stream.
type Frame struct {
	raw string
}

// NewFrame wraps raw frame text (without the trailing delimiter).
func NewFrame(raw string) Frame {
	return Frame{raw: raw}
}

// Raw returns the frame text as received.
func (f Frame) Raw() string {
	return f.raw
}

// Field returns the values of every line carrying the named field, joined
// with "\n". A single space after the colon is stripped. Lines without a
// recognized field prefix are ignored.
func (f Frame) Field(name string) (string, bool) {
	var values []string
	for _, line := range strings.Split(f.raw, "\n") {
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found || key != name {
			continue
		}
		values = append(values, strings.TrimPrefix(value, " "))
	}
	if len(values) == 0 {
		return "", false
	}
	return strings.Join(values, "\n"), true
}

// Event returns the event field, or "" when absent.
func (f Frame) Event() string {
	v, _ := f.Field(FieldEvent)
	return v
}

// Data returns the joined data field, or "" when absent.
func (f Frame) Data() string {
	v, _ := f.Field(FieldData)
	return v
}

// IsTerminal reports whether the payload is the termination sentinel.
func (f Frame) IsTerminal() bool {
	return strings.TrimSpace(f.Data()) == DoneSentinel
}

// Payload returns the data to parse, or nil when the frame has no data or
// carries the termination sentinel.
func (f Frame) Payload() []byte {
	data := f.Data()
	if strings.TrimSpace(data) == "" || strings.TrimSpace(data) == DoneSentinel {
		return nil
	}
	return []byte(data)
}

// Decoder accumulates chunks and splits them into frames.
type Decoder struct {
	buf []byte

	// pendingCR holds a trailing '\r' until the next chunk shows whether it
	// starts a CRLF pair.
	pendingCR bool
}

// NewDecoder creates a decoder for one stream.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns every frame completed by it, in order.
func (d *Decoder) Feed(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}

	if d.pendingCR {
		chunk = append([]byte{'\r'}, chunk...)
		d.pendingCR = false
	}
	if chunk[len(chunk)-1] == '\r' {
		chunk = chunk[:len(chunk)-1]
		d.pendingCR = true
	}
	d.buf = append(d.buf, bytes.ReplaceAll(chunk, crlf, lf)...)

	var frames []Frame
	for {
		idx := bytes.Index(d.buf, delimiter)
		if idx < 0 {
			break
		}
		frames = append(frames, Frame{raw: string(d.buf[:idx])})
		d.buf = d.buf[idx+len(delimiter):]
	}

	// Release the consumed prefix once nothing is retained.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

// Buffered returns the number of bytes waiting for a delimiter.
func (d *Decoder) Buffered() int {
	n := len(d.buf)
	if d.pendingCR {
		n++
	}
	return n
}

// Close ends the stream. A non-empty leftover is a truncated frame and is
// discarded, never parsed. The discarded bytes are returned for diagnostics.
func (d *Decoder) Close() []byte {
	leftover := d.buf
	if d.pendingCR {
		leftover = append(leftover, '\r')
	}
	d.buf = nil
	d.pendingCR = false

	if len(bytes.TrimSpace(leftover)) > 0 {
		slog.Debug("Discarding truncated SSE frame", "bytes", len(leftover))
	}
	return leftover
}

// Frames lazily decodes r into frames. Read errors other than io.EOF are
// yielded once and end the sequence.
func Frames(r io.Reader) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		dec := NewDecoder()
		defer dec.Close()

		chunk := make([]byte, readChunkSize)
		for {
			n, err := r.Read(chunk)
			if n > 0 {
				for _, frame := range dec.Feed(chunk[:n]) {
					if !yield(frame, nil) {
						return
					}
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(Frame{}, err)
				}
				return
			}
		}
	}
}
