package message

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/drep-project/binary"

	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/peerset"
	"github.com/drep-project/dswarm/swarmerr"
)

// signedFrames rebuilds the byte sequence the signature covers: the type
// tag byte followed by every payload frame, concatenated — matching §4.1's
// "signature frame covering frames 2..n-1".
func signedFrames(kind Kind, payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, byte(kind))
	buf = append(buf, payload...)
	return buf
}

// Encode serializes msg's variant payload and wraps it with a signature
// produced by id, returning the frame sequence ready for length-prefixed
// transmission (WriteFrames).
func Encode(id *identity.Identity, msg *Message) ([][]byte, error) {
	payload, err := encodePayload(msg)
	if err != nil {
		return nil, err
	}
	sig, err := id.Sign(signedFrames(msg.Kind, payload))
	if err != nil {
		return nil, err
	}
	return [][]byte{{byte(msg.Kind)}, payload, sig}, nil
}

func encodePayload(msg *Message) ([]byte, error) {
	switch msg.Kind {
	case KindPing, KindPong:
		return nil, nil
	case KindPeerSetDelta:
		return binary.Marshal(msg.PeerSetDelta)
	case KindGetBlockHashes:
		return binary.Marshal(msg.GetBlockHashes)
	case KindBlockHashes:
		return binary.Marshal(msg.BlockHashesMsg)
	case KindGetBlocks:
		return binary.Marshal(msg.GetBlocksMsg)
	case KindBlock:
		return binary.Marshal(msg.BlockMsg)
	case KindGetTxs:
		return binary.Marshal(msg.GetTxsMsg)
	case KindTx:
		return binary.Marshal(msg.TxMsg)
	case KindTxIds:
		return binary.Marshal(msg.TxIdsMsg)
	default:
		return nil, swarmerr.ErrInvalidMessage
	}
}

// Decode parses the frames produced by Encode (or received raw off a
// connection), verifying the signature and recovering the sender's
// address. attachIdentity reports whether the caller should attach the
// recovered address as the message's Identity — false for replies read
// back on a client endpoint, where §4.1 says Identity is absent.
func Decode(frames [][]byte, attachIdentity bool) (*Message, error) {
	if len(frames) != 3 {
		return nil, swarmerr.ErrInvalidMessage
	}
	tagFrame, payload, sig := frames[0], frames[1], frames[2]
	if len(tagFrame) != 1 {
		return nil, swarmerr.ErrInvalidMessage
	}
	kind := Kind(tagFrame[0])

	addr, ok := identity.Verify(signedFrames(kind, payload), sig)
	if !ok {
		return nil, swarmerr.ErrInvalidMessage
	}

	msg := &Message{Kind: kind}
	if attachIdentity {
		msg.Identity = addr
		msg.HasIdentity = true
	}

	switch kind {
	case KindPing:
		msg.Ping = &Ping{}
	case KindPong:
		msg.Pong = &Pong{}
	case KindPeerSetDelta:
		var p PeerSetDeltaPayload
		if err := binary.Unmarshal(payload, &p); err != nil {
			return nil, swarmerr.ErrInvalidMessage
		}
		msg.PeerSetDelta = &p
	case KindGetBlockHashes:
		var p GetBlockHashes
		if err := binary.Unmarshal(payload, &p); err != nil {
			return nil, swarmerr.ErrInvalidMessage
		}
		if len(p.LocatorHashes) == 0 {
			return nil, swarmerr.ErrInvalidMessage
		}
		msg.GetBlockHashes = &p
	case KindBlockHashes:
		var p BlockHashes
		if err := binary.Unmarshal(payload, &p); err != nil {
			return nil, swarmerr.ErrInvalidMessage
		}
		if len(p.Hashes) == 0 {
			return nil, swarmerr.ErrInvalidMessage
		}
		msg.BlockHashesMsg = &p
	case KindGetBlocks:
		var p GetBlocks
		if err := binary.Unmarshal(payload, &p); err != nil {
			return nil, swarmerr.ErrInvalidMessage
		}
		if len(p.Hashes) == 0 {
			return nil, swarmerr.ErrInvalidMessage
		}
		msg.GetBlocksMsg = &p
	case KindBlock:
		var p BlockPayload
		if err := binary.Unmarshal(payload, &p); err != nil {
			return nil, swarmerr.ErrInvalidMessage
		}
		msg.BlockMsg = &p
	case KindGetTxs:
		var p GetTxs
		if err := binary.Unmarshal(payload, &p); err != nil {
			return nil, swarmerr.ErrInvalidMessage
		}
		if len(p.IDs) == 0 {
			return nil, swarmerr.ErrInvalidMessage
		}
		msg.GetTxsMsg = &p
	case KindTx:
		var p TxPayload
		if err := binary.Unmarshal(payload, &p); err != nil {
			return nil, swarmerr.ErrInvalidMessage
		}
		msg.TxMsg = &p
	case KindTxIds:
		var p TxIds
		if err := binary.Unmarshal(payload, &p); err != nil {
			return nil, swarmerr.ErrInvalidMessage
		}
		if len(p.IDs) == 0 {
			return nil, swarmerr.ErrInvalidMessage
		}
		msg.TxIdsMsg = &p
	default:
		return nil, swarmerr.ErrInvalidMessage
	}
	return msg, nil
}

// FromWirePeer reconstructs a peerset.Peer and its recorded timestamp from
// a WirePeer, failing if the embedded public key does not parse.
func FromWirePeer(w WirePeer) (peerset.Peer, int64, error) {
	pub, err := secp256k1.ParsePubKey(w.PubKey)
	if err != nil {
		return peerset.Peer{}, 0, swarmerr.ErrInvalidMessage
	}
	return peerset.NewPeer(pub, w.URLs...), w.TimestampUnixNano, nil
}
