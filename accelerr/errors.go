// Package accelerr defines the closed error taxonomy for offload calls.
//
// Every failure an offload call can produce, whether transport, protocol, or
// application level, is one of seven kinds, all sharing the *Error base type.
// Callers branch on the kind, not on message text:
//
//	payload, err := cli.Call(ctx, "list_items", body, codec.TypeJSON, 250*time.Millisecond)
//	if accelerr.KindOf(err) == accelerr.KindBusy {
//	    // worker rejected under load; connection is still usable, back off and retry
//	}
//
// Transport-level kinds (WorkerUnavailable, Timeout, Cancelled-by-client,
// ProtocolError) taint the connection they occurred on; application-level
// kinds (Busy, InvalidInput, InternalError, Cancelled-by-worker) do not.
// That distinction is enforced in the client package, not here.
package accelerr

import (
	"errors"
	"fmt"
)

// Kind identifies one member of the closed error taxonomy.
type Kind uint8

const (
	KindUnknown Kind = iota

	// KindWorkerUnavailable: the connection could not be established,
	// or was lost before any response bytes arrived.
	KindWorkerUnavailable

	// KindTimeout: the client-side deadline elapsed while awaiting a response.
	KindTimeout

	// KindBusy: the worker explicitly rejected the call due to load.
	// The connection remains usable for future calls.
	KindBusy

	// KindCancelled: the call was cancelled by either side before completion.
	KindCancelled

	// KindInvalidInput: the payload failed validation, either locally in the
	// contract builder or remotely in the worker.
	KindInvalidInput

	// KindInternal: the worker reported an unexpected failure while
	// processing a valid request.
	KindInternal

	// KindProtocol: framing or codec-level corruption, or an unrecognized
	// response status.
	KindProtocol
)

// String returns the kind name as it appears on the wire and in logs.
func (k Kind) String() string {
	switch k {
	case KindWorkerUnavailable:
		return "WorkerUnavailable"
	case KindTimeout:
		return "Timeout"
	case KindBusy:
		return "Busy"
	case KindCancelled:
		return "Cancelled"
	case KindInvalidInput:
		return "InvalidInput"
	case KindInternal:
		return "InternalError"
	case KindProtocol:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// Error is the single base type for all offload failures.
// It carries a kind, a human-readable message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// Unwrap exposes the underlying cause (e.g., a net.OpError) to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is makes errors.Is(err, &Error{Kind: k}) match on kind alone, so packages
// can export kind sentinels without comparing messages.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the kind from any error in err's chain.
// Returns KindUnknown for nil or for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
