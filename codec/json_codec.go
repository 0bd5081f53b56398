package codec

import (
	"encoding/json"
)

// JSONCodec uses encoding/json for serialization.
// Pros: human-readable, cross-language, easy to debug on the wire.
// Cons: slower and larger than MessagePack; []byte fields inflate to base64.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() Type {
	return TypeJSON
}
