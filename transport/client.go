package transport

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/swarmerr"
)

// Endpoint is a persistent outbound connection to one peer. Every request
// issued on it must be answered before the next is sent (§4.2, §5): a
// per-endpoint mutex serializes request/response pairs rather than
// allowing concurrent requests to race on the same stream.
type Endpoint struct {
	mu   sync.Mutex
	conn net.Conn
	url  string
}

// Dial walks urls in order, sending a Ping on each and waiting for any
// reply within timeout. The first URL to answer becomes the endpoint's
// live connection; the returned liveURL is that URL alone, and callers
// truncate the peer's list to [liveURL, …later] per §4.2.
func Dial(urls []string, timeout time.Duration, pingFrames [][]byte) (ep *Endpoint, liveURL string, err error) {
	for _, u := range urls {
		addr := strings.TrimPrefix(u, "tcp://")
		conn, dialErr := net.DialTimeout("tcp", addr, timeout)
		if dialErr != nil {
			continue
		}
		conn.SetDeadline(time.Now().Add(timeout))
		if writeErr := message.WriteFrames(conn, pingFrames); writeErr != nil {
			conn.Close()
			continue
		}
		frames, readErr := message.ReadFrames(conn)
		if readErr != nil {
			conn.Close()
			continue
		}
		if _, decodeErr := message.Decode(frames, false); decodeErr != nil {
			conn.Close()
			continue
		}
		conn.SetDeadline(time.Time{})
		return &Endpoint{conn: conn, url: u}, u, nil
	}
	return nil, "", swarmerr.ErrUnreachable
}

// URL returns the endpoint's live URL.
func (e *Endpoint) URL() string {
	return e.url
}

// Request sends frames and waits for exactly one reply, serialized against
// any other Request on the same endpoint.
func (e *Endpoint) Request(frames [][]byte, timeout time.Duration) ([][]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return nil, swarmerr.ErrIOError
	}
	if err := message.WriteFrames(e.conn, frames); err != nil {
		return nil, swarmerr.ErrIOError
	}
	if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, swarmerr.ErrIOError
	}
	reply, err := message.ReadFrames(e.conn)
	if err != nil {
		return nil, swarmerr.ErrIOError
	}
	return reply, nil
}

// RequestMany sends frames once and reads exactly n replies back, used by
// GetBlocks/GetTxs-style requests that expect one reply frame set per
// requested item rather than a single aggregate reply (§4.5: "expects
// exactly len(hashes) Block replies in order").
func (e *Endpoint) RequestMany(frames [][]byte, n int, timeout time.Duration) ([][][]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return nil, swarmerr.ErrIOError
	}
	if err := message.WriteFrames(e.conn, frames); err != nil {
		return nil, swarmerr.ErrIOError
	}

	replies := make([][][]byte, 0, n)
	for i := 0; i < n; i++ {
		if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, swarmerr.ErrIOError
		}
		reply, err := message.ReadFrames(e.conn)
		if err != nil {
			return nil, swarmerr.ErrIOError
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

// Send writes frames without waiting for a reply, used for the gossip
// broadcast path (§4.3) where the distribution itself, not a per-peer
// reply, is what matters.
func (e *Endpoint) Send(frames [][]byte, timeout time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return swarmerr.ErrIOError
	}
	if err := message.WriteFrames(e.conn, frames); err != nil {
		return swarmerr.ErrIOError
	}
	return nil
}

// Close closes the underlying connection.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.Close()
}

// Pool is the client-endpoint map of §3: address -> persistent outbound
// connection, guarded by its own mutex (§5) rather than relying on
// call-site discipline with the receive loop.
type Pool struct {
	mu        sync.Mutex
	endpoints map[string]*Endpoint
}

// NewPool returns an empty client-endpoint pool.
func NewPool() *Pool {
	return &Pool{endpoints: make(map[string]*Endpoint)}
}

func (p *Pool) key(addr identity.Address) string {
	return string(addr[:])
}

// Get returns the endpoint for addr, if one exists.
func (p *Pool) Get(addr identity.Address) (*Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep, ok := p.endpoints[p.key(addr)]
	return ep, ok
}

// Put installs ep as the endpoint for addr, closing and replacing any
// existing endpoint for that address.
func (p *Pool) Put(addr identity.Address, ep *Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.endpoints[p.key(addr)]; ok {
		old.Close()
	}
	p.endpoints[p.key(addr)] = ep
}

// Remove closes and drops the endpoint for addr, if any.
func (p *Pool) Remove(addr identity.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ep, ok := p.endpoints[p.key(addr)]; ok {
		ep.Close()
		delete(p.endpoints, p.key(addr))
	}
}

// CloseAll closes every endpoint, used on swarm shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, ep := range p.endpoints {
		ep.Close()
		delete(p.endpoints, k)
	}
}

// Count returns the number of open endpoints.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}
