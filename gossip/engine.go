// Package gossip implements the peer-set distribution protocol of §4.3:
// a ticker-driven delta broadcast and a receive path that applies inbound
// deltas under a serialization lock, per the ordering guarantees of §5.
package gossip

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/logging"
	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/peerset"
	"github.com/drep-project/dswarm/signal"
	"github.com/drep-project/dswarm/swarmerr"
	"github.com/drep-project/dswarm/transport"
)

// DefaultInterval is the default distribution period (§4.3).
const DefaultInterval = 1500 * time.Millisecond

// fullStateEvery is the tenth-tick full-state refresh cadence.
const fullStateEvery = 10

// broadcastTimeout bounds each per-peer send during a distribution.
const broadcastTimeout = 300 * time.Millisecond

// Engine owns the live peer set, the tombstone set, and the client
// endpoint pool, and drives both the distribute and receive halves of the
// gossip protocol.
type Engine struct {
	self     *identity.Identity
	dialTO   time.Duration

	peers     *peerset.PeerSet
	removed   *peerset.RemovedSet
	lastSeen  *peerset.LastSeenTimestamps
	endpoints *transport.Pool

	// distributeMu and receiveMu are never held simultaneously except on
	// the documented apply_delta -> first_encounter -> distribute_delta
	// path, which releases receiveMu before acquiring distributeMu (§5).
	distributeMu sync.Mutex
	receiveMu    sync.Mutex

	lastDistributed time.Time
	lastReceived    time.Time
	tick            int

	running bool
	runMu   sync.Mutex

	DeltaDistributed *signal.Signal
	DeltaReceived    *signal.Signal

	log *logrus.Entry
}

// New builds an Engine for the given local identity, with dialTimeout used
// by AddPeers when dialing newly-seen peers.
func New(self *identity.Identity, dialTimeout time.Duration) *Engine {
	return &Engine{
		self:             self,
		dialTO:           dialTimeout,
		peers:            peerset.NewPeerSet(),
		removed:          peerset.NewRemovedSet(),
		lastSeen:         peerset.NewLastSeenTimestamps(),
		endpoints:        transport.NewPool(),
		DeltaDistributed: signal.New(),
		DeltaReceived:    signal.New(),
		log:              logging.For("gossip"),
	}
}

// Peers exposes the live peer set for the swarm facade's collection
// operations (§6).
func (e *Engine) Peers() *peerset.PeerSet { return e.peers }

// Endpoints exposes the client-endpoint pool so the dispatcher can look up
// a peer's endpoint to reply on (§4.4).
func (e *Engine) Endpoints() *transport.Pool { return e.endpoints }

// SetRunning marks whether the swarm is actively started, gating whether
// AddPeers dials (§4.3: "if running, dial the peer").
func (e *Engine) SetRunning(running bool) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	e.running = running
}

func (e *Engine) isRunning() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

// AddPeers implements add_peers(peers, ts) (§4.3): drops tombstones, skips
// self and already-known peers, dials if running, and records the
// accepted peers at ts. It returns the set actually added.
func (e *Engine) AddPeers(ctx context.Context, peers []peerset.Peer, ts time.Time) []peerset.Peer {
	var added []peerset.Peer
	for _, p := range peers {
		addr := p.Address()
		e.removed.Drop(addr)

		if addr == e.self.Address() {
			continue
		}
		if e.peers.Contains(p) {
			continue
		}

		stored := p
		if e.isRunning() {
			live, err := e.dial(p)
			if err != nil {
				e.log.WithError(err).WithField("peer", p.String()).Debug("dial failed, skipping")
				continue
			}
			stored = live
		}

		e.peers.Set(stored, ts)
		added = append(added, stored)
	}
	return added
}

// dial establishes (or reuses) a client endpoint for p, returning p with
// its URL list pruned to the one that answered and those after it.
func (e *Engine) dial(p peerset.Peer) (peerset.Peer, error) {
	if _, ok := e.endpoints.Get(p.Address()); ok {
		return p, nil
	}
	pingFrames, err := message.Encode(e.self, &message.Message{Kind: message.KindPing, Ping: &message.Ping{}})
	if err != nil {
		return peerset.Peer{}, err
	}
	ep, liveURL, err := transport.Dial(p.URLs, e.dialTO, pingFrames)
	if err != nil {
		return peerset.Peer{}, err
	}
	e.endpoints.Put(p.Address(), ep)
	urls := []string{liveURL}
	for i, u := range p.URLs {
		if u == liveURL {
			urls = p.URLs[i:]
			break
		}
	}
	return p.WithURLs(urls), nil
}

// Remove implements remove(peer) (§4.3): unconditional drop from the live
// set of the entry with p's public-key address, whatever its URL list.
func (e *Engine) Remove(p peerset.Peer) bool {
	ok := e.peers.Remove(p)
	if ok {
		e.endpoints.Remove(p.Address())
	}
	return ok
}

// queueRemoval records a tombstone, used internally when applying an
// incoming delta's removed set.
func (e *Engine) queueRemoval(p peerset.Peer, ts time.Time) {
	e.removed.Add(p, ts)
}

func (e *Engine) localPeer(urls []string) peerset.Peer {
	return peerset.NewPeer(e.self.PublicKey(), urls...)
}

// DialAllKnown dials every peer already present in the live set — used at
// Start to establish client endpoints for peers carried over from a
// previous run, replacing each one's URL list with the pruned form
// returned by a successful dial (§4.6). Peers that fail to dial are left
// in the live set but without a client endpoint, unlike an AddPeers dial
// failure, which leaves the peer out of the live set.
func (e *Engine) DialAllKnown(ctx context.Context) {
	for _, p := range e.peers.Enumerate() {
		live, err := e.dial(p)
		if err != nil {
			e.log.WithError(err).WithField("peer", p.String()).Debug("dial failed at start, leaving peer without an endpoint")
			continue
		}
		if ts, ok := e.peers.LastSeen(p.Address()); ok {
			e.peers.Set(live, ts)
		}
	}
}
