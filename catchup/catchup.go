// Package catchup implements the chain catch-up/reorg algorithm of §4.5,
// invoked when a peer announces a BlockHashes sequence we may be behind on.
package catchup

import (
	"context"
	"time"

	"github.com/drep-project/dswarm/chainiface"
	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/logging"
	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/swarmerr"
	"github.com/drep-project/dswarm/transport"
)

const requestTimeout = 5 * time.Second

// BlockDecoder turns the raw bytes carried by a Block reply back into a
// chainiface.Block, since the catch-up algorithm itself is chain-agnostic.
type BlockDecoder func([]byte) (chainiface.Block, error)

var log = logging.For("catchup")

// Run executes the algorithm of §4.5 against chain, using ep to request
// blocks and hashes from the announcing peer P, for the given announced
// hashes.
func Run(ctx context.Context, self *identity.Identity, chain chainiface.Chain, ep *transport.Endpoint, hashes [][32]byte, decode BlockDecoder) error {
	blocks, err := getBlocks(self, ep, hashes, decode)
	if err != nil {
		return err
	}
	return step(ctx, self, chain, ep, blocks, decode)
}

func step(ctx context.Context, self *identity.Identity, chain chainiface.Chain, ep *transport.Endpoint, blocks []chainiface.Block, decode BlockDecoder) error {
	if len(blocks) == 0 {
		return swarmerr.ErrInvalidMessage
	}
	oldest, latest := blocks[0], blocks[len(blocks)-1]
	tipHash, haveTip := chain.IndexBlockHash(-1)
	tip, _ := chain.Tip()

	// Case A: append.
	if !haveTip || oldest.PreviousHash() == tipHash {
		for _, b := range blocks {
			if err := chain.Append(ctx, b); err != nil {
				return err
			}
		}
		return nil
	}

	// Case C: stale.
	if tip != nil && latest.Index() <= tip.Index() {
		log.Debug("ignoring stale announcement")
		return nil
	}

	// Case B: reorg.
	locator := chain.GetBlockLocator()
	branchHashes, err := requestHashes(self, ep, locator, oldest.Hash())
	if err != nil {
		return err
	}
	if len(branchHashes) == 0 {
		return swarmerr.ErrInvalidMessage
	}
	branchPoint := branchHashes[0]

	if err := chain.DeleteAfter(ctx, branchPoint); err != nil {
		return err
	}
	if branchPoint == oldest.Hash() {
		return step(ctx, self, chain, ep, blocks[1:], decode)
	}

	// The reply ends at stop (oldest) itself; oldest is appended by the
	// re-entry below, so only the blocks before it are fetched here.
	rest := branchHashes[1:]
	if n := len(rest); n > 0 && rest[n-1] == oldest.Hash() {
		rest = rest[:n-1]
	}
	if len(rest) == 0 {
		return step(ctx, self, chain, ep, blocks, decode)
	}
	fetched, err := getBlocks(self, ep, toArrayHashes(rest), decode)
	if err != nil {
		return err
	}
	for _, b := range fetched {
		if err := chain.Append(ctx, b); err != nil {
			return err
		}
	}

	return step(ctx, self, chain, ep, blocks, decode)
}

func toArrayHashes(hashes []chainiface.Hash) [][32]byte {
	out := make([][32]byte, len(hashes))
	for i, h := range hashes {
		out[i] = [32]byte(h)
	}
	return out
}

func getBlocks(self *identity.Identity, ep *transport.Endpoint, hashes [][32]byte, decode BlockDecoder) ([]chainiface.Block, error) {
	req, err := message.Encode(self, &message.Message{Kind: message.KindGetBlocks, GetBlocksMsg: &message.GetBlocks{Hashes: hashes}})
	if err != nil {
		return nil, err
	}
	replies, err := ep.RequestMany(req, len(hashes), requestTimeout)
	if err != nil {
		return nil, err
	}
	blocks := make([]chainiface.Block, 0, len(hashes))
	for _, reply := range replies {
		msg, err := message.Decode(reply, false)
		if err != nil {
			return nil, err
		}
		if msg.Kind != message.KindBlock {
			return nil, swarmerr.ErrInvalidMessage
		}
		b, err := decode(msg.BlockMsg.Bytes)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func requestHashes(self *identity.Identity, ep *transport.Endpoint, locator chainiface.BlockLocator, stop chainiface.Hash) ([]chainiface.Hash, error) {
	req, err := message.Encode(self, &message.Message{
		Kind: message.KindGetBlockHashes,
		GetBlockHashes: &message.GetBlockHashes{
			LocatorHashes: toArrayHashes(locator.Hashes),
			Stop:          [32]byte(stop),
		},
	})
	if err != nil {
		return nil, err
	}
	reply, err := ep.Request(req, requestTimeout)
	if err != nil {
		return nil, err
	}
	msg, err := message.Decode(reply, false)
	if err != nil {
		return nil, err
	}
	if msg.Kind != message.KindBlockHashes {
		return nil, swarmerr.ErrInvalidMessage
	}
	out := make([]chainiface.Hash, len(msg.BlockHashesMsg.Hashes))
	for i, h := range msg.BlockHashesMsg.Hashes {
		out[i] = chainiface.Hash(h)
	}
	return out, nil
}
