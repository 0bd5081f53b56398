package codec

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec uses MessagePack for serialization.
// It is the preferred wire format: compact, fast, and []byte fields travel as
// raw binary instead of base64 text.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *MsgpackCodec) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (c *MsgpackCodec) Type() Type {
	return TypeMsgpack
}
