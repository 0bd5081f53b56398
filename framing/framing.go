// Package framing implements the length-prefixed binary framing used on the
// worker IPC channel.
//
// It solves the byte-stream boundary problem the same way for pipes and
// sockets: every frame is a fixed 4-byte little-endian length prefix followed
// by exactly that many payload bytes. There is no other delimiter; the stream
// is an ordered sequence of frames.
//
//	0        4
//	┌────────┬──────────────────┐
//	│ length │   payload ...    │
//	│ uint32 │   length bytes   │
//	└────────┴──────────────────┘
//
// The codec performs no internal locking. Two goroutines writing frames to the
// same stream must serialize externally, otherwise prefix and payload bytes
// from different frames interleave and corrupt the stream.
package framing

import (
	"encoding/binary"
	"errors"
	"io"

	"molt-accel/accelerr"
)

// DefaultMaxFrameSize bounds how large a single frame may be, in bytes.
// It caps the allocation a corrupt or hostile peer can force on the reader.
const DefaultMaxFrameSize uint32 = 64 << 20 // 64 MiB

// PrefixSize is the width of the length prefix in bytes.
const PrefixSize = 4

// ErrNoFrame is returned by ReadFrame when the stream closes cleanly at a
// frame boundary. It is distinct from a valid zero-length-payload frame and
// from a truncation fault: it means the peer finished sending frames and
// closed, which is a normal end of stream, not an error in the protocol.
var ErrNoFrame = errors.New("framing: no frame")

// WriteFrame writes one frame (prefix + payload) to w.
// Payloads larger than max are rejected before any bytes are written, so a
// failed call never leaves a half-frame on the stream from this layer.
func WriteFrame(w io.Writer, payload []byte, max uint32) error {
	if uint64(len(payload)) > uint64(max) {
		return accelerr.Newf(accelerr.KindProtocol, "frame size %d exceeds max %d", len(payload), max)
	}
	var prefix [PrefixSize]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

// ReadFrame reads one complete frame from r and returns its payload.
//
// Behavior at the edges:
//   - Stream closed cleanly before any prefix byte → ErrNoFrame.
//   - Stream closed after a partial prefix or partial payload → ProtocolError
//     (truncated frame). The caller never sees a short or zero-padded buffer.
//   - Declared length exceeds max → ProtocolError without reading the body,
//     so a corrupt length cannot trigger a huge allocation.
//
// Any other read error (e.g. a deadline expiry on a net.Conn) is returned
// as-is for the caller to classify.
func ReadFrame(r io.Reader, max uint32) ([]byte, error) {
	var prefix [PrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, ErrNoFrame
		}
		if err == io.ErrUnexpectedEOF {
			return nil, accelerr.Wrap(accelerr.KindProtocol, "stream closed inside frame prefix", err)
		}
		return nil, err
	}

	size := binary.LittleEndian.Uint32(prefix[:])
	if size > max {
		return nil, accelerr.Newf(accelerr.KindProtocol, "frame size %d exceeds max %d", size, max)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, accelerr.Newf(accelerr.KindProtocol,
				"truncated frame: declared %d bytes, stream closed early", size)
		}
		return nil, err
	}
	return payload, nil
}
