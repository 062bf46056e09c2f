package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drep-project/dswarm/gossip"
	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/memchain"
	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/transport"
)

func TestDispatcherRepliesToPing(t *testing.T) {
	selfID, err := identity.New()
	require.NoError(t, err)
	clientID, err := identity.New()
	require.NoError(t, err)

	srv, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	engine := gossip.New(selfID, time.Second)
	chain := memchain.New(nil)

	d, err := New(selfID, srv, engine, chain, nil, 4, memchain.DecodeBlockAsChainBlock, memchain.DecodeTransactionAsChainTx)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go d.Run(ctx)

	pingFrames, err := message.Encode(clientID, &message.Message{Kind: message.KindPing, Ping: &message.Ping{}})
	require.NoError(t, err)

	ep, _, err := transport.Dial([]string{"tcp://" + srv.Addr().String()}, time.Second, pingFrames)
	require.NoError(t, err)
	defer ep.Close()
}
