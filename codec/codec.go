// Package codec provides the pluggable payload serialization formats.
//
// Two general-purpose codecs, JSON and MessagePack, encode the same logical
// structure; the codec tag travels inside the request so the worker selects a
// matching decoder. The tag is chosen per call by the caller, not fixed per
// connection. A third Raw codec passes pre-encoded bytes through untouched
// (used by ping and other byte-oriented entries).
package codec

import "molt-accel/accelerr"

// Type tags a serialization format on the wire.
type Type string

const (
	TypeJSON    Type = "json"
	TypeMsgpack Type = "msgpack"
	TypeRaw     Type = "raw"
)

// Codec encodes and decodes one payload structure.
//
// Decode failure is never coerced to a default value; implementations return
// the underlying error and the caller classifies it (the client surfaces it
// as ProtocolError).
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() Type
}

// Get returns the codec for the given wire tag.
// Unknown tags are an InvalidInput error: the tag came from a caller or a
// peer, and there is no safe default to fall back to.
func Get(t Type) (Codec, error) {
	switch t {
	case TypeJSON:
		return &JSONCodec{}, nil
	case TypeMsgpack:
		return &MsgpackCodec{}, nil
	case TypeRaw:
		return &RawCodec{}, nil
	default:
		return nil, accelerr.Newf(accelerr.KindInvalidInput, "unknown codec %q", string(t))
	}
}

// RawCodec passes payloads through without serialization.
// Encode accepts only []byte; anything else is a caller bug.
type RawCodec struct{}

func (c *RawCodec) Encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case nil:
		return nil, nil
	default:
		return nil, accelerr.New(accelerr.KindInvalidInput, "raw payloads must be bytes")
	}
}

func (c *RawCodec) Decode(data []byte, v any) error {
	out, ok := v.(*[]byte)
	if !ok {
		return accelerr.New(accelerr.KindInvalidInput, "raw decode target must be *[]byte")
	}
	*out = data
	return nil
}

func (c *RawCodec) Type() Type {
	return TypeRaw
}
