// Package transport implements the server and client socket roles of
// §4.2: a bound listener preserving per-connection routing, and a pool of
// persistent per-peer client connections. Both are built directly on
// net.Listener/net.Conn, the way the teacher's own network/p2p.Server
// builds its peer transport, rather than on a dedicated ZeroMQ binding
// (§4.2.1).
package transport

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drep-project/dswarm/logging"
	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/swarmerr"
)

// pollTimeout bounds how long each Poll call waits for a message so the
// receive loop can observe cancellation promptly (§5).
const pollTimeout = 100 * time.Millisecond

// Received pairs a parsed message with the connection it arrived on, so a
// handler that must reply can write back on the same stream without a
// routing table lookup (the "routing prefix" of §4.1 is therefore implicit
// in which net.Conn produced the frame — §4.2.1).
type Received struct {
	Msg  *message.Message
	Conn net.Conn
}

// Server is the bound listener of §4.2. It accepts connections from any
// peer and hands each inbound message, tagged with the sender's recovered
// address, to Poll's caller.
type Server struct {
	listener net.Listener
	log      *logrus.Entry

	incoming chan Received
	done     chan struct{}
}

// Listen binds addr (a "host:port" TCP address; a leading "tcp://" scheme
// prefix, as used in peer URLs, is stripped here) and starts accepting
// connections.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", strings.TrimPrefix(addr, "tcp://"))
	if err != nil {
		return nil, swarmerr.ErrIOError
	}
	s := &Server{
		listener: ln,
		log:      logging.For("transport.server"),
		incoming: make(chan Received, 64),
		done:     make(chan struct{}),
	}
	go s.acceptLoop()
	return s, nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.log.WithError(err).Debug("accept error")
				return
			}
		}
		go s.readLoop(conn)
	}
}

func (s *Server) readLoop(conn net.Conn) {
	defer conn.Close()
	for {
		frames, err := message.ReadFrames(conn)
		if err != nil {
			s.log.WithError(err).WithField("remote", conn.RemoteAddr()).Debug("connection closed")
			return
		}
		msg, err := message.Decode(frames, true)
		if err != nil {
			s.log.WithError(err).Debug("dropping invalid message")
			continue
		}
		select {
		case s.incoming <- Received{Msg: msg, Conn: conn}:
		case <-s.done:
			return
		}
	}
}

// Poll waits up to pollTimeout for the next inbound message, or until ctx
// is cancelled. A nil result with a nil error means "nothing arrived, try
// again" (§4.4's dispatcher loop).
func (s *Server) Poll(ctx context.Context) (*Received, error) {
	select {
	case r := <-s.incoming:
		return &r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(pollTimeout):
		return nil, nil
	}
}

// Reply writes a message back on the connection a request arrived on.
func Reply(conn net.Conn, frames [][]byte) error {
	return message.WriteFrames(conn, frames)
}

// Close stops accepting new connections. Connections already accepted are
// not closed here: each is closed when its own readLoop returns, which
// happens when a read on it fails or when, after Close, a message read from
// it is not taken by the incoming queue.
func (s *Server) Close() error {
	close(s.done)
	return s.listener.Close()
}
