package catchup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drep-project/dswarm/chainiface"
	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/memchain"
	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/transport"
)

func decodeMemBlock(raw []byte) (chainiface.Block, error) {
	return memchain.DecodeBlock(raw)
}

// servePeer answers GetBlocks/GetBlockHashes requests against src, standing
// in for the dispatcher's handler matrix (§4.4) so this package's tests
// don't need to depend on the dispatch package.
func servePeer(t *testing.T, peerID *identity.Identity, srv *transport.Server, src *memchain.Chain) {
	t.Helper()
	go func() {
		ctx := context.Background()
		for {
			r, err := srv.Poll(ctx)
			if err != nil {
				return
			}
			if r == nil {
				continue
			}
			switch r.Msg.Kind {
			case message.KindPing:
				pongFrames, err := message.Encode(peerID, &message.Message{Kind: message.KindPong, Pong: &message.Pong{}})
				require.NoError(t, err)
				require.NoError(t, transport.Reply(r.Conn, pongFrames))
			case message.KindGetBlocks:
				for _, h := range r.Msg.GetBlocksMsg.Hashes {
					b, ok := src.BlockByHash(chainiface.Hash(h))
					if !ok {
						return
					}
					raw, err := b.Encode()
					require.NoError(t, err)
					frames, err := message.Encode(peerID, &message.Message{Kind: message.KindBlock, BlockMsg: &message.BlockPayload{Bytes: raw}})
					require.NoError(t, err)
					require.NoError(t, transport.Reply(r.Conn, frames))
				}
			case message.KindGetBlockHashes:
				locator := chainiface.BlockLocator{}
				for _, h := range r.Msg.GetBlockHashes.LocatorHashes {
					locator.Hashes = append(locator.Hashes, chainiface.Hash(h))
				}
				hashes, err := src.FindNextHashes(ctx, locator, chainiface.Hash(r.Msg.GetBlockHashes.Stop), 500)
				require.NoError(t, err)
				wire := make([][32]byte, len(hashes))
				for i, h := range hashes {
					wire[i] = [32]byte(h)
				}
				frames, err := message.Encode(peerID, &message.Message{Kind: message.KindBlockHashes, BlockHashesMsg: &message.BlockHashes{Hashes: wire}})
				require.NoError(t, err)
				require.NoError(t, transport.Reply(r.Conn, frames))
			}
		}
	}()
}

func dialPeer(t *testing.T, self *identity.Identity, srv *transport.Server) *transport.Endpoint {
	t.Helper()
	pingFrames, err := message.Encode(self, &message.Message{Kind: message.KindPing, Ping: &message.Ping{}})
	require.NoError(t, err)

	ep, _, err := transport.Dial([]string{"tcp://" + srv.Addr().String()}, time.Second, pingFrames)
	require.NoError(t, err)
	return ep
}

func buildChain(t *testing.T, n int) *memchain.Chain {
	t.Helper()
	c := memchain.New(nil)
	var prev chainiface.Hash
	for i := 0; i < n; i++ {
		b := &memchain.Block{Height: int64(i), Prev: prev, Payload: []byte{byte(i)}}
		require.NoError(t, c.Append(context.Background(), b))
		prev = b.Hash()
	}
	return c
}

func TestCatchupAppendCase(t *testing.T) {
	peerID, err := identity.New()
	require.NoError(t, err)
	selfID, err := identity.New()
	require.NoError(t, err)

	peerChain := buildChain(t, 5)

	peerSrv, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer peerSrv.Close()
	servePeer(t, peerID, peerSrv, peerChain)

	localChain := memchain.New(nil)
	ep := dialPeer(t, selfID, peerSrv)
	defer ep.Close()

	var hashes [][32]byte
	for i := 0; i < 5; i++ {
		h, ok := peerChain.IndexBlockHash(int64(i))
		require.True(t, ok)
		hashes = append(hashes, [32]byte(h))
	}

	err = Run(context.Background(), selfID, localChain, ep, hashes, decodeMemBlock)
	require.NoError(t, err)

	localTip, ok := localChain.Tip()
	require.True(t, ok)
	peerTip, ok := peerChain.Tip()
	require.True(t, ok)
	require.Equal(t, peerTip.Hash(), localTip.(*memchain.Block).Hash())
}
