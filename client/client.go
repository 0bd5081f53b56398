// Package client implements the offload client: it owns the IPC connections
// to the worker and executes exactly one request/response exchange per call
// under a deadline.
//
// Per-call state machine:
//
//	IDLE → SENDING → AWAITING → {DONE, FAILED}
//
// A call checks one connection out of the pool for the whole exchange, writes
// one request frame, and reads one response frame, strictly FIFO, no call-id
// multiplexing. Every transport, protocol, and application failure maps into
// one of the closed accelerr kinds; nothing is downgraded or swallowed.
//
// The client never retries. Retrying an entry that is known idempotent is a
// caller-level policy (see the offload package's retry middleware).
package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"molt-accel/accelerr"
	"molt-accel/codec"
	"molt-accel/framing"
	"molt-accel/loadbalance"
	"molt-accel/message"
	"molt-accel/registry"
)

// DefaultWorkerPool is the registry pool name used when none is configured.
const DefaultWorkerPool = "molt-worker"

const defaultDialTimeout = 2 * time.Second

// Config configures a Client.
type Config struct {
	// Network and Addr locate the worker ("unix" + socket path for a local
	// worker, "tcp" + host:port otherwise). Ignored when Registry is set.
	Network string
	Addr    string

	// Registry and Balancer, when both set, resolve the worker endpoint per
	// call instead of using Network/Addr. Pool is the registry pool name
	// (DefaultWorkerPool when empty).
	Registry registry.Registry
	Balancer loadbalance.Balancer
	Pool     string

	// PoolSize bounds concurrent in-flight calls per worker endpoint.
	// Defaults to 1: a single connection with head-of-line blocking.
	PoolSize int

	// Wire selects the envelope serialization (TypeMsgpack or TypeJSON).
	// Defaults to TypeMsgpack.
	Wire codec.Type

	// MaxFrameSize bounds frames in both directions.
	// Defaults to framing.DefaultMaxFrameSize.
	MaxFrameSize uint32

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// Logger, when nil, disables client logging.
	Logger *zerolog.Logger
}

// Client is a connection-owning offload client. It is safe for concurrent
// use; concurrency beyond PoolSize serializes on the pool.
type Client struct {
	cfg  Config
	wire codec.Codec
	log  zerolog.Logger

	mu     sync.Mutex
	pools  map[string]*connPool // one pool per resolved worker address
	nextID atomic.Uint64
	closed atomic.Bool
}

// New creates a Client. The wire codec must be JSON or MessagePack; the
// zero-value Wire selects MessagePack.
func New(cfg Config) (*Client, error) {
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
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = framing.DefaultMaxFrameSize
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	if cfg.Pool == "" {
		cfg.Pool = DefaultWorkerPool
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Client{
		cfg:   cfg,
		wire:  wire,
		log:   log,
		pools: make(map[string]*connPool),
	}, nil
}

// Connect eagerly establishes one connection to the worker and returns it to
// the pool. It is idempotent; callers that prefer lazy connection may skip it
// entirely. Failure to reach the worker is WorkerUnavailable and is never
// retried inside this call.
func (c *Client) Connect() error {
	network, addr, err := c.resolveEndpoint()
	if err != nil {
		return err
	}
	pool := c.poolFor(network, addr)
	pc, err := pool.get()
	if err != nil {
		return err
	}
	pool.put(pc)
	return nil
}

// Call performs one offload exchange: encode the request envelope, write one
// frame, read one response frame, map the status.
//
// payload must already be encoded with codecType; the client does not touch
// it. On success the raw response payload bytes are returned, still encoded
// with the response codec.
//
// timeout bounds the whole exchange. If ctx carries an earlier deadline, the
// earlier one wins; if ctx is cancelled mid-exchange the connection is treated
// exactly as on timeout (tainted, closed, reconnected on the next call).
func (c *Client) Call(ctx context.Context, entry string, payload []byte, codecType codec.Type, timeout time.Duration) ([]byte, error) {
	if c.closed.Load() {
		return nil, accelerr.New(accelerr.KindWorkerUnavailable, "client closed")
	}
	if timeout <= 0 {
		return nil, accelerr.New(accelerr.KindInvalidInput, "timeout must be positive")
	}
	if err := ctx.Err(); err != nil {
		return nil, accelerr.Wrap(accelerr.KindCancelled, "call cancelled before send", err)
	}

	network, addr, err := c.resolveEndpoint()
	if err != nil {
		return nil, err
	}
	pool := c.poolFor(network, addr)

	pc, err := pool.get()
	if err != nil {
		return nil, err
	}
	defer pool.put(pc)

	id := c.nextID.Add(1)
	req := &message.Request{
		RequestID: id,
		Entry:     entry,
		TimeoutMS: timeout.Milliseconds(),
		Codec:     string(codecType),
		Payload:   payload,
	}
	body, err := c.wire.Encode(req)
	if err != nil {
		return nil, accelerr.Wrap(accelerr.KindInternal, "encode request envelope", err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	pc.SetDeadline(deadline)

	// A context cancellation mid-exchange unblocks the socket read by forcing
	// the deadline into the past.
	stop := context.AfterFunc(ctx, func() {
		pc.SetDeadline(time.Now())
	})
	defer stop()

	start := time.Now()

	// SENDING: one request frame.
	if err := framing.WriteFrame(pc, body, c.cfg.MaxFrameSize); err != nil {
		return nil, c.failExchange(ctx, pc, id, err, "write request")
	}

	// AWAITING: one response frame, whole-exchange deadline.
	respBody, err := framing.ReadFrame(pc, c.cfg.MaxFrameSize)
	if err != nil {
		return nil, c.failExchange(ctx, pc, id, err, "read response")
	}

	var resp message.Response
	if err := c.wire.Decode(respBody, &resp); err != nil {
		pc.taint()
		return nil, accelerr.Wrap(accelerr.KindProtocol, "decode response envelope", err)
	}
	if resp.RequestID != id {
		// A response for some other exchange means this connection's FIFO
		// pairing is broken beyond recovery.
		pc.taint()
		return nil, accelerr.Newf(accelerr.KindProtocol,
			"mismatched response id: sent %d, got %d", id, resp.RequestID)
	}

	c.log.Debug().
		Str("entry", entry).
		Str("status", resp.Status).
		Dur("elapsed", time.Since(start)).
		Msg("offload exchange complete")

	return c.mapStatus(pc, &resp)
}

// mapStatus converts a well-formed response into the caller's result.
// Application-level rejections leave the connection usable; an unknown status
// is a protocol fault and taints it.
func (c *Client) mapStatus(pc *poolConn, resp *message.Response) ([]byte, error) {
	switch resp.Status {
	case message.StatusOk:
		return resp.Payload, nil
	case message.StatusInvalidInput:
		return nil, accelerr.New(accelerr.KindInvalidInput, resp.Error)
	case message.StatusInternal:
		return nil, accelerr.New(accelerr.KindInternal, resp.Error)
	case message.StatusBusy:
		return nil, accelerr.New(accelerr.KindBusy, resp.Error)
	case message.StatusCancelled:
		return nil, accelerr.New(accelerr.KindCancelled, resp.Error)
	case message.StatusTimeout:
		return nil, accelerr.New(accelerr.KindTimeout, resp.Error)
	default:
		pc.taint()
		return nil, accelerr.Newf(accelerr.KindProtocol, "unrecognized response status %q", resp.Status)
	}
}

// failExchange classifies an I/O or framing failure mid-exchange and taints
// the connection: whatever the cause, a half-completed exchange may leave a
// late response in flight that must never reach a later call.
func (c *Client) failExchange(ctx context.Context, pc *poolConn, id uint64, err error, phase string) error {
	pc.taint()

	// Cancellation from the caller's side: the forced-deadline read error is
	// the symptom, the context is the cause.
	if ctx.Err() != nil {
		c.sendCancel(pc, id)
		return accelerr.Wrap(accelerr.KindCancelled, phase+" cancelled", ctx.Err())
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		c.sendCancel(pc, id)
		return accelerr.Wrap(accelerr.KindTimeout, "worker response timed out", err)
	}

	if errors.Is(err, framing.ErrNoFrame) {
		return accelerr.New(accelerr.KindWorkerUnavailable, "worker closed the stream")
	}
	if accelerr.KindOf(err) == accelerr.KindProtocol {
		return err
	}

	// Refused, reset, broken pipe: the worker went away.
	return accelerr.Wrap(accelerr.KindWorkerUnavailable, phase+" failed", err)
}

// sendCancel makes a best-effort attempt to tell the worker the exchange was
// abandoned, before the tainted connection is discarded. Errors are ignored:
// the connection is already condemned and the worker tolerates a plain close.
func (c *Client) sendCancel(pc *poolConn, id uint64) {
	cancel := &message.Request{
		RequestID: id,
		Entry:     message.EntryCancel,
		Codec:     string(codec.TypeRaw),
	}
	body, err := c.wire.Encode(cancel)
	if err != nil {
		return
	}
	pc.SetWriteDeadline(time.Now().Add(50 * time.Millisecond))
	_ = framing.WriteFrame(pc, body, c.cfg.MaxFrameSize)
}

// Ping round-trips an empty raw payload through the worker's built-in ping
// entry and reports the elapsed time.
func (c *Client) Ping(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	start := time.Now()
	_, err := c.Call(ctx, message.EntryPing, nil, codec.TypeRaw, timeout)
	if err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Close tears down all pooled connections. Subsequent calls fail with
// WorkerUnavailable.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pools {
		p.close()
	}
}

// resolveEndpoint picks the worker address for this call: static config, or
// registry discovery plus the balancer when configured.
func (c *Client) resolveEndpoint() (network, addr string, err error) {
	if c.cfg.Registry == nil || c.cfg.Balancer == nil {
		if c.cfg.Addr == "" {
			return "", "", accelerr.New(accelerr.KindWorkerUnavailable, "no worker address configured")
		}
		return c.cfg.Network, c.cfg.Addr, nil
	}

	instances, err := c.cfg.Registry.Discover(c.cfg.Pool)
	if err != nil {
		return "", "", accelerr.Wrap(accelerr.KindWorkerUnavailable, "discover workers", err)
	}
	instance, err := c.cfg.Balancer.Pick(instances)
	if err != nil {
		return "", "", err
	}
	network = instance.Network
	if network == "" {
		network = "tcp"
	}
	return network, instance.Addr, nil
}

// poolFor returns (or creates) the connection pool for one worker address.
func (c *Client) poolFor(network, addr string) *connPool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := network + "://" + addr
	if p, ok := c.pools[key]; ok {
		return p
	}
	p := newConnPool(c.cfg.PoolSize, func() (net.Conn, error) {
		return net.DialTimeout(network, addr, c.cfg.DialTimeout)
	})
	c.pools[key] = p
	return p
}
