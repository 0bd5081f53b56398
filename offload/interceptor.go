// Package offload wires a host handler to the offload path.
//
// An Interceptor is the explicit middleware-object form of an offload
// decorator: configured once with an entry name, payload codec, deadline, and
// collaborators, it wraps a host handler so that invoking the handler
// delegates the work to the external worker.
//
// Per-invocation state machine:
//
//	BUILD_PAYLOAD → DISPATCH → {RESPOND, PROPAGATE_ERROR}
//
// Errors from the client (WorkerUnavailable, Timeout, Busy, Cancelled,
// InvalidInput, InternalError, ProtocolError) propagate to the caller
// unchanged. There is no silent local fallback: the wrapped handler's own
// body is unreachable under normal offload operation, so capacity or
// connectivity problems stay visible to the host instead of being masked by
// a slow in-process rerun.
package offload

import (
	"context"
	"time"

	"molt-accel/accelerr"
	"molt-accel/capability"
	"molt-accel/client"
	"molt-accel/codec"
	"molt-accel/contract"
)

// ResponseFactory converts the raw response payload bytes (still encoded with
// the call's codec) into the host's native result.
type ResponseFactory func(payload []byte) (*Result, error)

// RawJSONFactory forwards JSON wire bytes verbatim as a JSON response body.
// No re-decode, no re-encode: the worker's output bytes become the response.
// Only meaningful when the call codec is JSON.
func RawJSONFactory(payload []byte) (*Result, error) {
	return &Result{ContentType: "application/json", Body: payload}, nil
}

// TranscodeJSONFactory decodes the payload with the given codec and
// re-encodes it as JSON. The default for MessagePack calls whose host wants
// JSON out.
func TranscodeJSONFactory(payloadCodec codec.Type) ResponseFactory {
	return func(payload []byte) (*Result, error) {
		in, err := codec.Get(payloadCodec)
		if err != nil {
			return nil, err
		}
		var value any
		if err := in.Decode(payload, &value); err != nil {
			return nil, accelerr.Wrap(accelerr.KindProtocol, "decode response payload", err)
		}
		out := &codec.JSONCodec{}
		body, err := out.Encode(value)
		if err != nil {
			return nil, accelerr.Wrap(accelerr.KindInternal, "re-encode response payload", err)
		}
		return &Result{ContentType: "application/json", Body: body}, nil
	}
}

// Config configures an Interceptor.
type Config struct {
	// Entry names the remote operation.
	Entry string

	// Codec is the payload codec for this entry's calls.
	Codec codec.Type

	// Timeout bounds each exchange.
	Timeout time.Duration

	// Capabilities is the startup-constructed capability set. The Offload
	// capability is checked before any I/O on every invocation.
	Capabilities *capability.Set

	// Contract validates and coerces the handler's parameters into the
	// entry's payload.
	Contract *contract.Builder

	// Client executes the exchange.
	Client *client.Client

	// Factory converts response bytes to the host result. Defaults to
	// RawJSONFactory for JSON calls and TranscodeJSONFactory otherwise.
	Factory ResponseFactory

	// Middlewares wrap the offload path (logging, retry policy for
	// idempotent entries, client-side rate limiting).
	Middlewares []Middleware
}

// Interceptor offloads one entry. Construct once, wrap any number of
// handlers; it keeps no per-invocation state.
type Interceptor struct {
	cfg          Config
	payloadCodec codec.Codec
	factory      ResponseFactory
	chain        Middleware
}

// NewInterceptor validates the configuration and builds the middleware chain
// once, not per invocation.
func NewInterceptor(cfg Config) (*Interceptor, error) {
	if cfg.Entry == "" {
		return nil, accelerr.New(accelerr.KindInvalidInput, "interceptor requires an entry name")
	}
	if cfg.Client == nil {
		return nil, accelerr.New(accelerr.KindInvalidInput, "interceptor requires a client")
	}
	if cfg.Contract == nil {
		return nil, accelerr.New(accelerr.KindInvalidInput, "interceptor requires a contract")
	}
	if cfg.Codec == "" {
		cfg.Codec = codec.TypeMsgpack
	}
	if cfg.Codec == codec.TypeRaw {
		// Contracts build structured payloads; raw carries opaque bytes.
		return nil, accelerr.New(accelerr.KindInvalidInput, "raw codec cannot carry contract payloads")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 250 * time.Millisecond
	}
	payloadCodec, err := codec.Get(cfg.Codec)
	if err != nil {
		return nil, err
	}

	factory := cfg.Factory
	if factory == nil {
		if cfg.Codec == codec.TypeJSON {
			factory = RawJSONFactory
		} else {
			factory = TranscodeJSONFactory(cfg.Codec)
		}
	}

	return &Interceptor{
		cfg:          cfg,
		payloadCodec: payloadCodec,
		factory:      factory,
		chain:        Chain(cfg.Middlewares...),
	}, nil
}

// Wrap returns the offloading handler for local.
//
// local is retained only as documentation of what the entry computes; the
// returned handler never invokes it. If offload is denied or fails, the
// error propagates; it does not fall back to running local in-process.
func (i *Interceptor) Wrap(local HandlerFunc) HandlerFunc {
	_ = local
	return i.chain(i.offload)
}

// offload is the innermost handler: capability gate, contract build, encode,
// dispatch, response factory.
func (i *Interceptor) offload(ctx context.Context, params map[string]string) (*Result, error) {
	// Fail fast with zero network activity when the host lacks permission.
	if err := i.cfg.Capabilities.Require(capability.Offload); err != nil {
		return nil, err
	}

	payload, err := i.cfg.Contract.Build(params)
	if err != nil {
		return nil, err
	}

	encoded, err := i.payloadCodec.Encode(payload)
	if err != nil {
		return nil, accelerr.Wrap(accelerr.KindInvalidInput, "encode payload", err)
	}

	respBytes, err := i.cfg.Client.Call(ctx, i.cfg.Entry, encoded, i.cfg.Codec, i.cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return i.factory(respBytes)
}
