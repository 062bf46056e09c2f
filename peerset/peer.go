// Package peerset implements the Peer record and the PeerSet/RemovedSet
// collections of §3, keyed by public-key address per the §9 design note
// rather than by the mutable URL list.
package peerset

import (
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/drep-project/dswarm/identity"
)

// Peer is a remote node identified by a public key and reachable at one or
// more endpoint URLs, ordered by preference (most-recently-live first).
type Peer struct {
	PubKey *secp256k1.PublicKey
	URLs   []string
}

// NewPeer builds a Peer from a public key and an ordered, non-empty URL list.
func NewPeer(pub *secp256k1.PublicKey, urls ...string) Peer {
	cp := make([]string, len(urls))
	copy(cp, urls)
	return Peer{PubKey: pub, URLs: cp}
}

// Address returns the peer's derived short address.
func (p Peer) Address() identity.Address {
	return identity.AddressFromPubKey(p.PubKey)
}

// Equal compares peers by (pubkey, url-list) per §3's equality rule,
// independent of the keyed-by-address storage PeerSet uses; PeerSet's own
// membership tests and removal go by address and do not call it.
func (p Peer) Equal(o Peer) bool {
	if p.Address() != o.Address() {
		return false
	}
	if len(p.URLs) != len(o.URLs) {
		return false
	}
	for i := range p.URLs {
		if p.URLs[i] != o.URLs[i] {
			return false
		}
	}
	return true
}

// WithURLs returns a copy of p with its URL list replaced — the only
// permitted mutation of a Peer per §3 (pruning unreachable prefixes after a
// successful dial).
func (p Peer) WithURLs(urls []string) Peer {
	cp := make([]string, len(urls))
	copy(cp, urls)
	return Peer{PubKey: p.PubKey, URLs: cp}
}

func (p Peer) String() string {
	return p.Address().String() + "@" + strings.Join(p.URLs, ",")
}
