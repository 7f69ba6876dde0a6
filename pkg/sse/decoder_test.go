package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
	": keep-alive\n\n" +
	"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"a:b\"}}\n\n" +
	"data: [DONE]\n\n"

func feedAll(d *Decoder, chunks ...string) []string {
	var out []string
	for _, c := range chunks {
		for _, f := range d.Feed([]byte(c)) {
			out = append(out, f.Raw())
		}
	}
	return out
}

func TestDecoder_SingleChunk(t *testing.T) {
	d := NewDecoder()
	frames := d.Feed([]byte(sampleStream))
	require.Len(t, frames, 4)

	assert.Equal(t, "message_start", frames[0].Event())
	assert.Equal(t, `{"type":"message_start"}`, frames[0].Data())

	assert.Empty(t, frames[1].Data())
	assert.Nil(t, frames[1].Payload())

	assert.Equal(t, `{"type":"content_block_delta","delta":{"text":"a:b"}}`, frames[2].Data())

	assert.True(t, frames[3].IsTerminal())
	assert.Nil(t, frames[3].Payload())

	assert.Empty(t, d.Close())
}

func TestDecoder_SplitPointIndependence(t *testing.T) {
	want := feedAll(NewDecoder(), sampleStream)

	for i := 0; i <= len(sampleStream); i++ {
		got := feedAll(NewDecoder(), sampleStream[:i], sampleStream[i:])
		require.Equal(t, want, got, "split at %d", i)
	}
}

func TestDecoder_ByteByByte(t *testing.T) {
	want := feedAll(NewDecoder(), sampleStream)

	d := NewDecoder()
	var got []string
	for i := 0; i < len(sampleStream); i++ {
		got = append(got, feedAll(d, sampleStream[i:i+1])...)
	}
	assert.Equal(t, want, got)
}

func TestDecoder_DelimiterAcrossChunks(t *testing.T) {
	d := NewDecoder()
	assert.Empty(t, d.Feed([]byte("data: x\n")))
	frames := d.Feed([]byte("\ndata: y"))
	require.Len(t, frames, 1)
	assert.Equal(t, "x", frames[0].Data())
	assert.Equal(t, len("data: y"), d.Buffered())
}

func TestDecoder_LeftoverDiscarded(t *testing.T) {
	d := NewDecoder()
	frames := d.Feed([]byte("data: {\"a\":1}\n\ndata: {\"trunc"))
	require.Len(t, frames, 1)

	leftover := d.Close()
	assert.Equal(t, `data: {"trunc`, string(leftover))
	assert.Zero(t, d.Buffered())
}

func TestDecoder_CRLF(t *testing.T) {
	stream := "event: ping\r\ndata: {}\r\n\r\ndata: z\r\n\r\n"
	want := feedAll(NewDecoder(), stream)
	require.Len(t, want, 2)
	assert.Equal(t, "event: ping\ndata: {}", want[0])

	for i := 0; i <= len(stream); i++ {
		got := feedAll(NewDecoder(), stream[:i], stream[i:])
		require.Equal(t, want, got, "split at %d", i)
	}
}

func TestFrame_MultipleDataLines(t *testing.T) {
	f := NewFrame("data: one\ndata:two\nid: 7")
	assert.Equal(t, "one\ntwo", f.Data())
	_, ok := f.Field("retry")
	assert.False(t, ok)
	id, ok := f.Field("id")
	assert.True(t, ok)
	assert.Equal(t, "7", id)
}

func TestFrames_Reader(t *testing.T) {
	r := iotest.OneByteReader(strings.NewReader(sampleStream + "data: tail"))

	var data []string
	for f, err := range Frames(r) {
		require.NoError(t, err)
		data = append(data, f.Data())
	}
	assert.Equal(t, []string{`{"type":"message_start"}`, "", `{"type":"content_block_delta","delta":{"text":"a:b"}}`, "[DONE]"}, data)
}

func TestFrames_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: a\n\n"), iotest.ErrReader(boom))

	var frames int
	var gotErr error
	for f, err := range Frames(r) {
		if err != nil {
			gotErr = err
			continue
		}
		frames++
		assert.Equal(t, "a", f.Data())
	}
	assert.Equal(t, 1, frames)
	assert.ErrorIs(t, gotErr, boom)
}

func TestFrames_StopEarly(t *testing.T) {
	var n int
	for range Frames(strings.NewReader(sampleStream)) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
