// Package message implements the wire envelope of §4.1: a closed set of
// typed variants, framed and signed, encoded with the teacher lineage's own
// struct-to-bytes marshaler (github.com/drep-project/binary) and signed
// with the identity package's compact-recoverable ECDSA.
package message

import (
	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/peerset"
)

// Kind tags which of the ten variants a Message carries.
type Kind byte

const (
	KindPing Kind = iota + 1
	KindPong
	KindPeerSetDelta
	KindGetBlockHashes
	KindBlockHashes
	KindGetBlocks
	KindBlock
	KindGetTxs
	KindTx
	KindTxIds
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	case KindPeerSetDelta:
		return "PeerSetDelta"
	case KindGetBlockHashes:
		return "GetBlockHashes"
	case KindBlockHashes:
		return "BlockHashes"
	case KindGetBlocks:
		return "GetBlocks"
	case KindBlock:
		return "Block"
	case KindGetTxs:
		return "GetTxs"
	case KindTx:
		return "Tx"
	case KindTxIds:
		return "TxIds"
	default:
		return "Unknown"
	}
}

// Ping carries no payload beyond the envelope itself.
type Ping struct{}

// Pong carries no payload beyond the envelope itself.
type Pong struct{}

// PeerSetDeltaPayload is the wire form of a gossip delta. Peer entries are
// flattened to (pubkey bytes, urls, timestamp) triples because
// peerset.Peer holds a *secp256k1.PublicKey, which binary.Marshal cannot
// walk directly.
type PeerSetDeltaPayload struct {
	Sender       WirePeer
	TimestampUnixNano int64
	Added         []WirePeer
	Removed       []WirePeer
	Existing      []WirePeer
	HasExisting   bool
}

// WirePeer is the flattened, binary.Marshal-friendly encoding of a
// peerset.Peer plus the timestamp it was recorded at.
type WirePeer struct {
	PubKey            []byte
	URLs              []string
	TimestampUnixNano int64
}

// GetBlockHashes requests hashes following locator, stopping at Stop.
type GetBlockHashes struct {
	LocatorHashes [][32]byte
	Stop          [32]byte
}

// BlockHashes announces a sequence of hashes, e.g. a catch-up response or
// an unsolicited new-block announcement.
type BlockHashes struct {
	Hashes [][32]byte
}

// GetBlocks requests the full encoded blocks for the given hashes, in order.
type GetBlocks struct {
	Hashes [][32]byte
}

// BlockPayload carries one block's canonical bytes.
type BlockPayload struct {
	Bytes []byte
}

// GetTxs requests the encoded transactions for the given ids.
type GetTxs struct {
	IDs [][32]byte
}

// TxPayload carries one transaction's canonical bytes.
type TxPayload struct {
	Bytes []byte
}

// TxIds announces transaction ids a peer believes we may not have.
type TxIds struct {
	IDs [][32]byte
}

// Message is a fully parsed envelope: its variant, and — when received at
// the server endpoint — the recovered sender address.
type Message struct {
	Kind     Kind
	Identity identity.Address
	HasIdentity bool

	Ping           *Ping
	Pong           *Pong
	PeerSetDelta   *PeerSetDeltaPayload
	GetBlockHashes *GetBlockHashes
	BlockHashesMsg *BlockHashes
	GetBlocksMsg   *GetBlocks
	BlockMsg       *BlockPayload
	GetTxsMsg      *GetTxs
	TxMsg          *TxPayload
	TxIdsMsg       *TxIds
}

// ToWirePeer flattens a peerset.Peer for encoding.
func ToWirePeer(p peerset.Peer, ts int64) WirePeer {
	return WirePeer{
		PubKey:            p.PubKey.SerializeCompressed(),
		URLs:              append([]string(nil), p.URLs...),
		TimestampUnixNano: ts,
	}
}
