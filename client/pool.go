// Connection pool for the offload client.
//
// Pool design: a buffered channel as the free list: FIFO, goroutine-safe,
// with blocking-on-empty built in. A connection is checked out for the full
// duration of one request/response exchange and returned afterwards, so frames
// from two concurrent calls can never interleave on one connection.
//
// Taint discipline: a connection that saw a timeout, a cancellation mid-read,
// or any framing/protocol fault is marked tainted. Tainted connections are
// closed on return, never reused; a stray late response from the worker must
// not be read by an unrelated later call. Application-level rejections (Busy,
// InvalidInput, ...) do not taint.
package client

import (
	"net"
	"sync"

	"molt-accel/accelerr"
)

// connPool manages reusable connections to a single worker address.
type connPool struct {
	mu       sync.Mutex
	conns    chan *poolConn           // Buffered channel as free list
	maxConns int                      // Upper bound on live connections
	curConns int                      // Currently created connections (may be < maxConns)
	factory  func() (net.Conn, error) // Dials one new connection
	closed   bool
}

// poolConn wraps a net.Conn with pool metadata.
type poolConn struct {
	net.Conn
	tainted bool
}

// taint marks the connection as unusable for any future call.
func (pc *poolConn) taint() {
	pc.tainted = true
}

// newConnPool creates a pool with the given max size.
// Connections are created lazily; the pool starts empty and grows on demand.
func newConnPool(maxConns int, factory func() (net.Conn, error)) *connPool {
	return &connPool{
		conns:    make(chan *poolConn, maxConns),
		maxConns: maxConns,
		factory:  factory,
	}
}

// get checks out a connection for exclusive use.
// Strategy:
//  1. Take an idle connection from the free list if one is available.
//  2. If the pool is empty but under the limit, dial a new connection.
//  3. At the limit, block until a connection is returned.
//
// Dial failures surface as WorkerUnavailable.
func (p *connPool) get() (*poolConn, error) {
	select {
	case pc := <-p.conns:
		if pc.tainted {
			// Stale entry from an earlier fault; replace it.
			p.discard(pc)
			return p.createNew()
		}
		return pc, nil
	default:
		p.mu.Lock()
		underLimit := p.curConns < p.maxConns
		p.mu.Unlock()
		if underLimit {
			return p.createNew()
		}
		pc := <-p.conns
		if pc.tainted {
			p.discard(pc)
			return p.createNew()
		}
		return pc, nil
	}
}

// put returns a connection after an exchange.
// Tainted connections are closed and dropped; the next get dials a fresh one,
// which is how the client tolerates worker restarts: reconnect lazily on the
// next call, never by waiting for the worker within the current call.
func (p *connPool) put(pc *poolConn) {
	if pc.tainted {
		p.discard(pc)
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		pc.Close()
		return
	}
	p.conns <- pc
}

// discard closes a connection and releases its pool slot.
func (p *connPool) discard(pc *poolConn) {
	pc.Close()
	p.mu.Lock()
	p.curConns--
	p.mu.Unlock()
}

// close shuts down the pool and closes all idle connections.
// Connections currently checked out are closed by put when they come back.
func (p *connPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case pc := <-p.conns:
			pc.Close()
			p.mu.Lock()
			p.curConns--
			p.mu.Unlock()
		default:
			return
		}
	}
}

// createNew dials a connection via the factory.
// The counter is reserved under the mutex before dialing so concurrent gets
// cannot exceed maxConns.
func (p *connPool) createNew() (*poolConn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, accelerr.New(accelerr.KindWorkerUnavailable, "client closed")
	}
	if p.curConns >= p.maxConns {
		p.mu.Unlock()
		// Lost a race for the last slot; wait for a returned connection.
		pc := <-p.conns
		if pc.tainted {
			p.discard(pc)
			return p.createNew()
		}
		return pc, nil
	}
	p.curConns++
	p.mu.Unlock()

	netConn, err := p.factory()
	if err != nil {
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return nil, accelerr.Wrap(accelerr.KindWorkerUnavailable, "dial worker", err)
	}
	return &poolConn{Conn: netConn}, nil
}
