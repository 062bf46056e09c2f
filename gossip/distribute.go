package gossip

import (
	"context"
	"time"

	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/peerset"
)

// Run drives the distribution ticker until ctx is cancelled (§4.3, §4.6).
// listenURLs is the local node's own advertised address, used to stamp the
// delta's sender field.
func (e *Engine) Run(ctx context.Context, interval time.Duration, listenURLs []string) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.distributeOnce(ctx, listenURLs)
		}
	}
}

// distributeOnce performs a single distribution tick: builds the delta,
// broadcasts it if non-trivial, and always advances the tenth-tick
// counter (§4.3's documented unconditional-advance behavior).
func (e *Engine) distributeOnce(ctx context.Context, listenURLs []string) {
	e.distributeMu.Lock()
	defer e.distributeMu.Unlock()
	e.distributeLocked(ctx, listenURLs)
}

// distributeLocked assumes distributeMu is already held by the caller —
// used both by the ticker path and by the first-encounter immediate
// redistribution triggered from ApplyDelta.
func (e *Engine) distributeLocked(ctx context.Context, listenURLs []string) {
	now := time.Now()
	e.tick++
	fullState := e.tick%fullStateEvery == 0

	added := e.peersAddedSince(e.lastDistributed, now)
	removed := e.removed.ConsumeDue(now)

	var existing []peerset.Peer
	if fullState {
		existing = e.peersExcept(added)
	}

	if len(added) == 0 && len(removed) == 0 && !fullState {
		return
	}

	e.lastDistributed = now

	delta := message.PeerSetDeltaPayload{
		Sender:            message.ToWirePeer(e.localPeer(listenURLs), now.UnixNano()),
		TimestampUnixNano: now.UnixNano(),
		Added:             toWirePeers(added, now.UnixNano()),
		Removed:           toWirePeers(removed, now.UnixNano()),
		HasExisting:       fullState,
	}
	if fullState {
		delta.Existing = toWirePeers(existing, now.UnixNano())
	}

	frames, err := message.Encode(e.self, &message.Message{Kind: message.KindPeerSetDelta, PeerSetDelta: &delta})
	if err != nil {
		e.log.WithError(err).Error("failed to encode peer set delta")
		return
	}

	e.broadcast(frames)
	e.DeltaDistributed.Fire()
}

func (e *Engine) broadcast(frames [][]byte) {
	for _, p := range e.peers.Enumerate() {
		ep, ok := e.endpoints.Get(p.Address())
		if !ok {
			continue
		}
		if err := ep.Send(frames, broadcastTimeout); err != nil {
			e.log.WithError(err).WithField("peer", p.String()).Debug("broadcast timed out")
		}
	}
}

func (e *Engine) peersAddedSince(since, now time.Time) []peerset.Peer {
	var out []peerset.Peer
	for _, p := range e.peers.Enumerate() {
		ts, ok := e.peers.LastSeen(p.Address())
		if !ok {
			continue
		}
		if ts.After(since) && !ts.After(now) {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) peersExcept(exclude []peerset.Peer) []peerset.Peer {
	skip := make(map[string]struct{}, len(exclude))
	for _, p := range exclude {
		skip[p.Address().String()] = struct{}{}
	}
	var out []peerset.Peer
	for _, p := range e.peers.Enumerate() {
		if _, ok := skip[p.Address().String()]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

func toWirePeers(peers []peerset.Peer, ts int64) []message.WirePeer {
	out := make([]message.WirePeer, 0, len(peers))
	for _, p := range peers {
		out = append(out, message.ToWirePeer(p, ts))
	}
	return out
}
