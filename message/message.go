// Package message defines the request/response envelope exchanged with the
// worker.
//
// The envelope is serialized by the wire codec (JSON or MessagePack) and
// wrapped in a length-prefixed frame for transmission. The inner Payload is
// opaque here: it is encoded separately with the per-call payload codec named
// by the Codec field, so the worker can pick a matching decoder.
package message

// Wire status values a worker may return.
//
// Anything outside this set is a protocol fault: the client maps it to
// ProtocolError rather than guessing.
const (
	StatusOk           = "Ok"
	StatusInvalidInput = "InvalidInput"
	StatusInternal     = "InternalError"
	StatusBusy         = "Busy"
	StatusCancelled    = "Cancelled"
	StatusTimeout      = "Timeout"
)

// Reserved entry names handled by the worker's frame loop itself,
// never dispatched to a registered entry.
const (
	EntryPing   = "__ping__"
	EntryCancel = "__cancel__"
)

// Request carries one offload call to the worker.
//
// Entry is immutable once sent. The JSON wire tags the payload as
// "payload_b64" because encoding/json emits []byte as base64; the MessagePack
// wire carries it as raw binary.
type Request struct {
	RequestID uint64 `json:"request_id" msgpack:"request_id"`
	Entry     string `json:"entry" msgpack:"entry"`
	TimeoutMS int64  `json:"timeout_ms" msgpack:"timeout_ms"`
	Codec     string `json:"codec" msgpack:"codec"`
	Payload   []byte `json:"payload_b64" msgpack:"payload"`
}

// Response carries the worker's answer for exactly one Request.
//
//   - Status == StatusOk: Payload holds the result, encoded with Codec.
//   - Any other status: Error holds a human-readable message, Payload is empty.
//
// RequestID echoes the request so the client can detect a stray response from
// an abandoned exchange.
type Response struct {
	RequestID uint64 `json:"request_id" msgpack:"request_id"`
	Status    string `json:"status" msgpack:"status"`
	Error     string `json:"error,omitempty" msgpack:"error,omitempty"`
	Codec     string `json:"codec,omitempty" msgpack:"codec,omitempty"`
	Payload   []byte `json:"payload_b64,omitempty" msgpack:"payload,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty" msgpack:"elapsed_ms,omitempty"`
}

// KnownStatus reports whether s is one of the defined wire statuses.
func KnownStatus(s string) bool {
	switch s {
	case StatusOk, StatusInvalidInput, StatusInternal, StatusBusy, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}
