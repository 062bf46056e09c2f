package gossip

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/peerset"
)

func TestAddPeersSkipsSelfAndDuplicates(t *testing.T) {
	self, err := identity.New()
	require.NoError(t, err)
	e := New(self, time.Second)

	selfPeer := peerset.NewPeer(self.PublicKey(), "tcp://self")
	added := e.AddPeers(context.Background(), []peerset.Peer{selfPeer}, time.Now())
	require.Empty(t, added)

	other, err := identity.New()
	require.NoError(t, err)
	otherPeer := peerset.NewPeer(other.PublicKey(), "tcp://other")

	added = e.AddPeers(context.Background(), []peerset.Peer{otherPeer}, time.Now())
	require.Len(t, added, 1)

	added = e.AddPeers(context.Background(), []peerset.Peer{otherPeer}, time.Now())
	require.Empty(t, added, "already-known peer is skipped")
}

func TestAddPeersDropsTombstone(t *testing.T) {
	self, err := identity.New()
	require.NoError(t, err)
	e := New(self, time.Second)

	other, err := identity.New()
	require.NoError(t, err)
	otherPeer := peerset.NewPeer(other.PublicKey(), "tcp://other")

	e.queueRemoval(otherPeer, time.Now())
	require.True(t, e.removed.Contains(otherPeer.Address()))

	e.AddPeers(context.Background(), []peerset.Peer{otherPeer}, time.Now())
	require.False(t, e.removed.Contains(otherPeer.Address()))
}

func TestApplyDeltaSelfIntroduction(t *testing.T) {
	self, err := identity.New()
	require.NoError(t, err)
	e := New(self, time.Second)

	sender, err := identity.New()
	require.NoError(t, err)
	senderPeer := peerset.NewPeer(sender.PublicKey(), "tcp://sender")

	payload := &message.PeerSetDeltaPayload{
		Sender:            message.ToWirePeer(senderPeer, time.Now().UnixNano()),
		TimestampUnixNano: time.Now().UnixNano(),
	}

	require.False(t, e.Peers().Contains(senderPeer))
	err = e.ApplyDelta(context.Background(), payload, nil)
	require.NoError(t, err)
	require.True(t, e.Peers().Contains(senderPeer))
}

func TestApplyDeltaRemovesSelfAsTombstoneNotEjection(t *testing.T) {
	self, err := identity.New()
	require.NoError(t, err)
	e := New(self, time.Second)

	sender, err := identity.New()
	require.NoError(t, err)
	senderPeer := peerset.NewPeer(sender.PublicKey(), "tcp://sender")
	selfPeer := peerset.NewPeer(self.PublicKey(), "tcp://self")

	// The sender is already known, so applying the delta does not trigger
	// the first-encounter distribution, which would consume the tombstone.
	e.AddPeers(context.Background(), []peerset.Peer{senderPeer}, time.Now())

	payload := &message.PeerSetDeltaPayload{
		Sender:            message.ToWirePeer(senderPeer, time.Now().UnixNano()),
		TimestampUnixNano: time.Now().UnixNano(),
		Removed:           []message.WirePeer{message.ToWirePeer(selfPeer, time.Now().UnixNano())},
	}

	err = e.ApplyDelta(context.Background(), payload, nil)
	require.NoError(t, err)
	require.True(t, e.removed.Contains(self.Address()), "self removal is tombstoned, not applied to our own set")
}
