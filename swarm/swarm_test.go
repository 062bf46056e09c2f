package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/memchain"
	"github.com/drep-project/dswarm/peerset"
)

func waitForListenAddr(t *testing.T, s *Swarm) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr, ok := s.ListenAddr(); ok {
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("swarm never bound its listener")
	return ""
}

func TestTwoSwarmsGossipPeerDiscovery(t *testing.T) {
	idA, err := identity.New()
	require.NoError(t, err)
	idB, err := identity.New()
	require.NoError(t, err)

	cfg := Config{
		ListenURL:          "tcp://127.0.0.1:0",
		DistributeInterval: 50 * time.Millisecond,
		BlockDecode:        memchain.DecodeBlockAsChainBlock,
		TxDecode:           memchain.DecodeTransactionAsChainTx,
	}

	swarmA := New(idA, cfg)
	swarmB := New(idB, cfg)

	chainA := memchain.New(nil)
	chainB := memchain.New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go swarmA.StartAsync(ctx, chainA)
	go swarmB.StartAsync(ctx, chainB)

	addrA := waitForListenAddr(t, swarmA)
	addrB := waitForListenAddr(t, swarmB)

	peerB := peerset.NewPeer(idB.PublicKey(), addrB)
	added := swarmA.AddPeersAsync(ctx, []peerset.Peer{peerB}, time.Time{})
	require.Len(t, added, 1)

	require.Eventually(t, func() bool {
		return swarmB.Contains(peerset.NewPeer(idA.PublicKey(), addrA))
	}, 2*time.Second, 20*time.Millisecond, "B should learn about A via gossip")
}
