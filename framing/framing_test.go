package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"molt-accel/accelerr"
)

func TestWriteReadRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("hello world"),
		{},
		{0x00, 0xff, 0x7f},
		bytes.Repeat([]byte{0xab}, 1024*1024),
	}

	for _, payload := range payloads {
		var buf bytes.Buffer
		if err := WriteFrame(&buf, payload, DefaultMaxFrameSize); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}

		got, err := ReadFrame(&buf, DefaultMaxFrameSize)
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("payload mismatch: wrote %d bytes, read %d bytes", len(payload), len(got))
		}
	}
}

func TestReadFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	frames := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, f := range frames {
		if err := WriteFrame(&buf, f, DefaultMaxFrameSize); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range frames {
		got, err := ReadFrame(&buf, DefaultMaxFrameSize)
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("expect %q, got %q", want, got)
		}
	}

	// Stream ends exactly at a frame boundary: the no-frame sentinel, not an error.
	_, err := ReadFrame(&buf, DefaultMaxFrameSize)
	if !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expect ErrNoFrame at clean end of stream, got %v", err)
	}
}

func TestEmptyFrameDistinctFromNoFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte{}, DefaultMaxFrameSize); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFrame(&buf, DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("a zero-length frame must read successfully, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expect empty payload, got %d bytes", len(got))
	}
}

func TestReadFrameTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello world"), DefaultMaxFrameSize); err != nil {
		t.Fatal(err)
	}
	// Drop the last 3 payload bytes.
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-3])

	_, err := ReadFrame(truncated, DefaultMaxFrameSize)
	if accelerr.KindOf(err) != accelerr.KindProtocol {
		t.Fatalf("expect ProtocolError for truncated body, got %v", err)
	}
}

func TestReadFrameTruncatedPrefix(t *testing.T) {
	// 2 of 4 prefix bytes, then EOF.
	_, err := ReadFrame(bytes.NewReader([]byte{0x05, 0x00}), DefaultMaxFrameSize)
	if accelerr.KindOf(err) != accelerr.KindProtocol {
		t.Fatalf("expect ProtocolError for truncated prefix, got %v", err)
	}
}

// failAfterPrefix serves a frame prefix and fails the test if the body is read.
type failAfterPrefix struct {
	t      *testing.T
	prefix []byte
	pos    int
}

func (r *failAfterPrefix) Read(p []byte) (int, error) {
	if r.pos >= len(r.prefix) {
		r.t.Fatal("body read attempted after oversized prefix")
	}
	n := copy(p, r.prefix[r.pos:])
	r.pos += n
	return n, nil
}

func TestReadFrameOversizedLengthRejectedBeforeBody(t *testing.T) {
	const max = uint32(1024)
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], max+1)

	r := &failAfterPrefix{t: t, prefix: prefix[:]}
	_, err := ReadFrame(r, max)
	if accelerr.KindOf(err) != accelerr.KindProtocol {
		t.Fatalf("expect ProtocolError for oversized frame, got %v", err)
	}
}

func TestWriteFrameOversizedPayloadRejected(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, 100), 99)
	if accelerr.KindOf(err) != accelerr.KindProtocol {
		t.Fatalf("expect ProtocolError, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("oversized write must not emit bytes, wrote %d", buf.Len())
	}
}

func TestWriteFramePropagatesIOError(t *testing.T) {
	pr, pw := io.Pipe()
	pr.Close()

	err := WriteFrame(pw, []byte("data"), DefaultMaxFrameSize)
	if err == nil {
		t.Fatal("expect write error on closed pipe")
	}
}
