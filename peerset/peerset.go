package peerset

import (
	"sync"
	"time"

	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/swarmerr"
)

// entry is the live-set value: a peer's current URL list plus the
// last-seen timestamp at which it was (re-)recorded.
type entry struct {
	peer   Peer
	lastTS time.Time
}

// PeerSet is the live peer table of §3: a mapping from peer to last-seen
// timestamp, keyed by public-key address so that "at most one peer per
// public key" is structural rather than repaired after URL-list mutation
// (§9's design note).
//
// PeerSet is safe for concurrent use; its internal mutex is distinct from
// the gossip engine's receive/distribute locks (§5) — those guard the
// higher-level apply/distribute sequences, this one guards the map itself.
type PeerSet struct {
	mu      sync.RWMutex
	entries map[identity.Address]entry
}

// NewPeerSet returns an empty peer set.
func NewPeerSet() *PeerSet {
	return &PeerSet{entries: make(map[identity.Address]entry)}
}

// Contains reports whether a peer with p's address is present, regardless
// of whether its stored URL list matches p's (membership is by public key
// for PeerSet, as is removal — see Remove below — as opposed to
// Peer.Equal's full (pubkey, urls) equality).
func (s *PeerSet) Contains(p Peer) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[p.Address()]
	return ok
}

// Get returns the currently-stored form of the peer with the given
// address, if any.
func (s *PeerSet) Get(addr identity.Address) (Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[addr]
	return e.peer, ok
}

// Set records peer -> ts unconditionally, keyed by address. The gossip
// engine is responsible for dial/tombstone checks before calling this (see
// gossip.Engine.AddPeers).
func (s *PeerSet) Set(p Peer, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[p.Address()] = entry{peer: p, lastTS: ts}
}

// Remove unconditionally drops the peer with p's address from the live set,
// per §4.3 ("remove(peer) unconditionally drops the peer from the live
// set"). It reports whether a peer was present.
func (s *PeerSet) Remove(p Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := p.Address()
	if _, ok := s.entries[addr]; !ok {
		return false
	}
	delete(s.entries, addr)
	return true
}

// RemoveAddress drops a peer by address alone (used when only the sender's
// recovered identity is known, not its full Peer record).
func (s *PeerSet) RemoveAddress(addr identity.Address) (Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[addr]
	if !ok {
		return Peer{}, false
	}
	delete(s.entries, addr)
	return e.peer, true
}

// Clear empties the set.
func (s *PeerSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[identity.Address]entry)
}

// Count returns the number of live peers.
func (s *PeerSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Enumerate returns a snapshot slice of the live peers. The returned slice
// is a copy; mutating it does not affect the set.
func (s *PeerSet) Enumerate() []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Peer, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.peer)
	}
	return out
}

// LastSeen returns the timestamp most recently recorded for addr, if
// present.
func (s *PeerSet) LastSeen(addr identity.Address) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[addr]
	return e.lastTS, ok
}

// CopyTo copies the live peers into out starting at offset, following §6's
// collection-style argument validation: a nil out is ErrNullArg, a negative
// offset is ErrRangeError, and an out too short to hold the copy from
// offset is ErrArgError. It returns the number of peers copied.
func (s *PeerSet) CopyTo(out []Peer, offset int) (int, error) {
	if out == nil {
		return 0, swarmerr.ErrNullArg
	}
	if offset < 0 {
		return 0, swarmerr.ErrRangeError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset+len(s.entries) > len(out) {
		return 0, swarmerr.ErrArgError
	}
	i := offset
	for _, e := range s.entries {
		out[i] = e.peer
		i++
	}
	return len(s.entries), nil
}

// RemovedSet is the tombstone table of §3: peers believed removed, with the
// timestamp of removal, pending propagation and eventual consumption by a
// gossip distribution (§4.3).
type RemovedSet struct {
	mu      sync.Mutex
	entries map[identity.Address]tombstone
}

type tombstone struct {
	peer Peer
	ts   time.Time
}

// NewRemovedSet returns an empty tombstone set.
func NewRemovedSet() *RemovedSet {
	return &RemovedSet{entries: make(map[identity.Address]tombstone)}
}

// Add records peer as removed at ts, overwriting any earlier tombstone for
// the same address.
func (r *RemovedSet) Add(p Peer, ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[p.Address()] = tombstone{peer: p, ts: ts}
}

// Drop removes any tombstone for addr — used when a caller explicitly
// re-adds a previously-removed peer, per §3's invariant that a tombstone
// blocks re-addition "until the tombstone is explicitly dropped".
func (r *RemovedSet) Drop(addr identity.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, addr)
}

// Contains reports whether addr is currently tombstoned.
func (r *RemovedSet) Contains(addr identity.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[addr]
	return ok
}

// ConsumeDue snapshots every tombstone with ts <= now and removes it from
// the set, per §4.3's "removed = peers in tombstone set with timestamp <=
// now; these are consumed (removed from the tombstone set after
// snapshotting)".
func (r *RemovedSet) ConsumeDue(now time.Time) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Peer
	for addr, t := range r.entries {
		if !t.ts.After(now) {
			due = append(due, t.peer)
			delete(r.entries, addr)
		}
	}
	return due
}

// LastSeenTimestamps tracks, per §3, the most recent timestamp observed in
// any received delta from each peer.
type LastSeenTimestamps struct {
	mu  sync.Mutex
	ts  map[identity.Address]time.Time
}

// NewLastSeenTimestamps returns an empty tracker.
func NewLastSeenTimestamps() *LastSeenTimestamps {
	return &LastSeenTimestamps{ts: make(map[identity.Address]time.Time)}
}

// Update records ts for addr if it is newer than what's stored, per §3's
// monotonic LastReceived-adjacent guarantee applied per-sender.
func (l *LastSeenTimestamps) Update(addr identity.Address, ts time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.ts[addr]; !ok || ts.After(cur) {
		l.ts[addr] = ts
	}
}

// Get returns the last-seen timestamp recorded for addr.
func (l *LastSeenTimestamps) Get(addr identity.Address) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.ts[addr]
	return t, ok
}
