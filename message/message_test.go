package message

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/peerset"
)

func newTestPeerForMessage(t *testing.T, id *identity.Identity) peerset.Peer {
	t.Helper()
	return peerset.NewPeer(id.PublicKey(), "tcp://127.0.0.1:9001")
}

func TestEncodeDecodePingRoundTrip(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	frames, err := Encode(id, &Message{Kind: KindPing, Ping: &Ping{}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteFrames(&buf, frames))

	readFrames, err := ReadFrames(&buf)
	require.NoError(t, err)

	msg, err := Decode(readFrames, true)
	require.NoError(t, err)
	require.Equal(t, KindPing, msg.Kind)
	require.True(t, msg.HasIdentity)
	require.Equal(t, id.Address(), msg.Identity)
}

func TestDecodeWithoutIdentity(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	frames, err := Encode(id, &Message{Kind: KindPong, Pong: &Pong{}})
	require.NoError(t, err)

	msg, err := Decode(frames, false)
	require.NoError(t, err)
	require.False(t, msg.HasIdentity)
}

func TestDecodeRejectsTamperedPayload(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	frames, err := Encode(id, &Message{
		Kind: KindGetBlockHashes,
		GetBlockHashes: &GetBlockHashes{
			LocatorHashes: [][32]byte{{1}},
			Stop:          [32]byte{2},
		},
	})
	require.NoError(t, err)

	frames[1][0] ^= 0xFF

	_, err = Decode(frames, true)
	require.Error(t, err)
}

func TestDecodeRejectsEmptyHashList(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	frames, err := Encode(id, &Message{
		Kind:        KindBlockHashes,
		BlockHashesMsg: &BlockHashes{Hashes: nil},
	})
	require.NoError(t, err)

	_, err = Decode(frames, true)
	require.Error(t, err)
}

func TestWirePeerRoundTrip(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	wp := ToWirePeer(newTestPeerForMessage(t, id), 42)
	p, ts, err := FromWirePeer(wp)
	require.NoError(t, err)
	require.Equal(t, int64(42), ts)
	require.Equal(t, id.Address(), p.Address())
}
