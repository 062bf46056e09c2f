// Package swarm ties the peer set, gossip engine, transport, and
// dispatcher into the single public facade named in §6: construction,
// lifecycle, collection operations, and broadcast helpers.
package swarm

import (
	"time"

	"github.com/drep-project/dswarm/catchup"
	"github.com/drep-project/dswarm/dispatch"
)

// DefaultDialTimeout is used when Config.DialTimeout is zero (§4.2).
const DefaultDialTimeout = 15 * time.Second

// Config configures a Swarm at construction.
type Config struct {
	// ListenURL is the local server endpoint's bind address, e.g.
	// "tcp://127.0.0.1:7946".
	ListenURL string

	// DialTimeout bounds each URL attempt (connect plus Ping/Pong) while
	// dialing a peer; the peer is Unreachable once every URL has failed.
	DialTimeout time.Duration

	// DistributeInterval is the gossip ticker period; DefaultInterval if
	// zero.
	DistributeInterval time.Duration

	// HandlerPoolSize sizes the dispatcher's round-robin actor pool;
	// dispatch.DefaultPoolSize if zero.
	HandlerPoolSize int

	// BlockDecode/TxDecode turn raw bytes received over the wire back
	// into chainiface.Block/Transaction values for whatever concrete
	// chain implementation the caller is running.
	BlockDecode catchup.BlockDecoder
	TxDecode    dispatch.TxDecoder
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout <= 0 {
		return DefaultDialTimeout
	}
	return c.DialTimeout
}
