package gossip

import (
	"context"
	"time"

	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/peerset"
	"github.com/drep-project/dswarm/swarmerr"
)

// ApplyDelta implements the receive path of §4.3 under the receive
// serialization lock. listenURLs is passed through only for the
// first-encounter immediate redistribution case.
func (e *Engine) ApplyDelta(ctx context.Context, payload *message.PeerSetDeltaPayload, listenURLs []string) error {
	e.receiveMu.Lock()

	sender, _, err := message.FromWirePeer(payload.Sender)
	if err != nil {
		e.receiveMu.Unlock()
		return swarmerr.ErrInvalidMessage
	}
	ts := time.Unix(0, payload.TimestampUnixNano)

	added, err := decodeWirePeers(payload.Added)
	if err != nil {
		e.receiveMu.Unlock()
		return err
	}
	removedIn, err := decodeWirePeers(payload.Removed)
	if err != nil {
		e.receiveMu.Unlock()
		return err
	}
	var existing []peerset.Peer
	if payload.HasExisting {
		existing, err = decodeWirePeers(payload.Existing)
		if err != nil {
			e.receiveMu.Unlock()
			return err
		}
	}

	firstEncounter := !e.peers.Contains(sender) && sender.Address() != e.self.Address()
	if firstEncounter {
		added = append(added, sender)
	}

	// Step 2: apply removed.
	for _, p := range removedIn {
		if p.Address() == e.self.Address() {
			e.queueRemoval(p, ts)
			continue
		}
		e.peers.Remove(p)
		e.endpoints.Remove(p.Address())
	}

	// Step 3: working set = added U (existing \ tombstoned).
	working := make([]peerset.Peer, 0, len(added)+len(existing))
	working = append(working, added...)
	for _, p := range existing {
		if e.removed.Contains(p.Address()) {
			continue
		}
		working = append(working, p)
	}

	e.AddPeers(ctx, working, ts)

	if ts.After(e.lastReceived) {
		e.lastReceived = ts
	}
	e.lastSeen.Update(sender.Address(), ts)

	e.receiveMu.Unlock()

	if firstEncounter {
		e.distributeMu.Lock()
		e.distributeLocked(ctx, listenURLs)
		e.distributeMu.Unlock()
	}

	e.DeltaReceived.Fire()
	return nil
}

func decodeWirePeers(wps []message.WirePeer) ([]peerset.Peer, error) {
	out := make([]peerset.Peer, 0, len(wps))
	for _, wp := range wps {
		p, _, err := message.FromWirePeer(wp)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
