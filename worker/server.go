// Package worker implements the worker-side server for the offload protocol.
//
// The client treats the worker as an external process; this package makes the
// protocol executable end to end: one binary (cmd/moltworkerd) and every
// integration test run against it.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (sequential frame loop per connection)
//	  → wire decode → Middleware Chain → entry dispatch → wire encode → write frame
//
// Frames on one connection are handled strictly in order: one request, one
// response, FIFO, no call-id multiplexing. Concurrency comes from clients
// opening multiple connections, not from parallelism within one.
package worker

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"molt-accel/accelerr"
	"molt-accel/codec"
	"molt-accel/framing"
	"molt-accel/message"
	"molt-accel/registry"
)

// EntryFunc implements one named remote operation. It receives the decoded
// payload (a []byte for raw-codec requests, otherwise whatever the payload
// codec produced) and returns a result to encode with the same codec.
//
// Returned errors map onto wire statuses by their accelerr kind; errors
// outside the taxonomy become InternalError.
type EntryFunc func(ctx context.Context, payload any) (any, error)

// Config tunes a Server. The zero value is usable.
type Config struct {
	// Wire selects the envelope serialization. Must match the clients.
	// Defaults to TypeMsgpack.
	Wire codec.Type

	// MaxFrameSize bounds frames in both directions.
	MaxFrameSize uint32

	// MaxInflight bounds concurrently executing entries across all
	// connections; excess requests get a Busy response without executing.
	// Zero or negative means unlimited.
	MaxInflight int

	// Logger, when nil, disables worker logging.
	Logger *zerolog.Logger
}

// Server accepts offload connections and dispatches entries.
type Server struct {
	cfg      Config
	wire     codec.Codec
	entries  map[string]EntryFunc
	listener net.Listener
	wg       sync.WaitGroup  // Tracks in-flight requests for graceful shutdown
	shutdown atomic.Bool     // Distinguishes intentional listener close from real Accept errors
	inflight atomic.Int64

	middlewares []Middleware
	handler     HandlerFunc

	registry      registry.Registry
	pool          string
	advertiseAddr string
	network       string

	log zerolog.Logger
}

// NewServer creates a server with no registered entries.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Wire == "" {
		cfg.Wire = codec.TypeMsgpack
	}
	if cfg.Wire != codec.TypeMsgpack && cfg.Wire != codec.TypeJSON {
		return nil, accelerr.Newf(accelerr.KindInvalidInput, "unsupported wire codec %q", string(cfg.Wire))
	}
	wire, err := codec.Get(cfg.Wire)
	if err != nil {
		return nil, err
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = framing.DefaultMaxFrameSize
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Server{
		cfg:     cfg,
		wire:    wire,
		entries: make(map[string]EntryFunc),
		log:     log,
	}, nil
}

// RegisterEntry makes fn callable under the given entry name.
// Reserved names (__ping__, __cancel__) belong to the frame loop.
func (s *Server) RegisterEntry(name string, fn EntryFunc) error {
	if name == "" || fn == nil {
		return accelerr.New(accelerr.KindInvalidInput, "entry name and function must be set")
	}
	if name == message.EntryPing || name == message.EntryCancel {
		return accelerr.Newf(accelerr.KindInvalidInput, "entry name %q is reserved", name)
	}
	s.entries[name] = fn
	return nil
}

// Use registers a middleware. Middlewares apply in registration order,
// outermost first. Must be called before Serve.
func (s *Server) Use(mw Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Serve listens on network/address and runs the accept loop until Shutdown.
//
// advertiseAddr is the address registered in the registry (may differ from
// the listen address: ":9800" is not routable, "10.0.0.5:9800" is). Pass a
// nil registry to skip endpoint registration; pool falls back to the default
// worker pool name when empty.
func (s *Server) Serve(network, address, advertiseAddr, pool string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.listener = listener
	s.network = network

	// Build the middleware chain once at startup, not per request.
	s.handler = Chain(s.middlewares...)(s.dispatch)

	if reg != nil {
		if pool == "" {
			pool = "molt-worker"
		}
		s.registry = reg
		s.pool = pool
		s.advertiseAddr = advertiseAddr
		err := reg.Register(pool, registry.WorkerInstance{
			Network: network,
			Addr:    advertiseAddr,
		}, 10) // TTL 10s, KeepAlive renews
		if err != nil {
			listener.Close()
			return err
		}
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Addr returns the bound listen address (useful with ":0" listeners).
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// handleConn runs the sequential frame loop for one connection.
//
// Faults are asymmetric by design: a clean end of stream ends the loop
// quietly, a framing/protocol fault closes the connection without a response
// (there is no request id to answer to once the stream is corrupt).
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		body, err := framing.ReadFrame(conn, s.cfg.MaxFrameSize)
		if err != nil {
			if err != framing.ErrNoFrame {
				s.log.Warn().Err(err).Msg("closing connection after frame fault")
			}
			return
		}

		req := &message.Request{}
		if err := s.wire.Decode(body, req); err != nil {
			s.log.Warn().Err(err).Msg("closing connection after envelope decode fault")
			return
		}

		// A cancel frame marks an exchange the client already abandoned.
		// There is nothing to answer: the client is gone from this stream.
		if req.Entry == message.EntryCancel {
			continue
		}

		resp := s.process(req)
		out, err := s.wire.Encode(resp)
		if err != nil {
			s.log.Error().Err(err).Msg("encode response envelope")
			return
		}
		if err := framing.WriteFrame(conn, out, s.cfg.MaxFrameSize); err != nil {
			s.log.Warn().Err(err).Msg("write response frame")
			return
		}
	}
}

// process handles one request: busy gate, ping, then the middleware chain.
func (s *Server) process(req *message.Request) *message.Response {
	if max := int64(s.cfg.MaxInflight); max > 0 {
		if s.inflight.Add(1) > max {
			s.inflight.Add(-1)
			return &message.Response{
				RequestID: req.RequestID,
				Status:    message.StatusBusy,
				Error:     "worker at capacity",
			}
		}
		defer s.inflight.Add(-1)
	}

	s.wg.Add(1)
	defer s.wg.Done()

	if req.Entry == message.EntryPing {
		return &message.Response{
			RequestID: req.RequestID,
			Status:    message.StatusOk,
			Codec:     string(codec.TypeRaw),
			Payload:   req.Payload,
		}
	}

	return s.handler(context.Background(), req)
}

// dispatch is the innermost handler: look up the entry, decode the payload
// with the request's codec, invoke, encode the result with the same codec.
func (s *Server) dispatch(ctx context.Context, req *message.Request) *message.Response {
	start := time.Now()

	fn, ok := s.entries[req.Entry]
	if !ok {
		return s.errorResponse(req, accelerr.Newf(accelerr.KindInvalidInput, "unknown entry %q", req.Entry))
	}

	payloadCodec, err := codec.Get(codec.Type(req.Codec))
	if err != nil {
		return s.errorResponse(req, err)
	}

	var payload any
	if payloadCodec.Type() == codec.TypeRaw {
		payload = req.Payload
	} else {
		var decoded any
		if err := payloadCodec.Decode(req.Payload, &decoded); err != nil {
			return s.errorResponse(req, accelerr.Wrap(accelerr.KindInvalidInput, "decode payload", err))
		}
		payload = decoded
	}

	result, err := fn(ctx, payload)
	if err != nil {
		// An entry that overran its context reports Timeout even if it
		// surfaced the deadline as a plain error.
		if ctx.Err() != nil && accelerr.KindOf(err) == accelerr.KindUnknown {
			err = accelerr.Wrap(accelerr.KindTimeout, "entry execution timed out", err)
		}
		return s.errorResponse(req, err)
	}

	out, err := payloadCodec.Encode(result)
	if err != nil {
		return s.errorResponse(req, accelerr.Wrap(accelerr.KindInternal, "encode result", err))
	}

	return &message.Response{
		RequestID: req.RequestID,
		Status:    message.StatusOk,
		Codec:     req.Codec,
		Payload:   out,
		ElapsedMS: time.Since(start).Milliseconds(),
	}
}

// errorResponse maps an entry error onto a wire status by its kind.
func (s *Server) errorResponse(req *message.Request, err error) *message.Response {
	status := message.StatusInternal
	switch accelerr.KindOf(err) {
	case accelerr.KindInvalidInput:
		status = message.StatusInvalidInput
	case accelerr.KindBusy:
		status = message.StatusBusy
	case accelerr.KindCancelled:
		status = message.StatusCancelled
	case accelerr.KindTimeout:
		status = message.StatusTimeout
	}
	return &message.Response{
		RequestID: req.RequestID,
		Status:    status,
		Error:     err.Error(),
	}
}

// Shutdown performs graceful shutdown:
//  1. Deregister from the registry, so clients stop routing here
//  2. Set the shutdown flag, then close the listener
//  3. Wait for in-flight requests, bounded by timeout
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.registry != nil {
		if err := s.registry.Deregister(s.pool, s.advertiseAddr); err != nil {
			s.log.Warn().Err(err).Msg("deregister worker endpoint")
		}
	}

	// Flag before close: otherwise the Accept error races the flag and Serve
	// reports a spurious failure.
	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return accelerr.New(accelerr.KindTimeout, "timeout waiting for in-flight requests")
	}
}
