package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/message"
)

func TestDialAndPollPing(t *testing.T) {
	serverID, err := identity.New()
	require.NoError(t, err)
	clientID, err := identity.New()
	require.NoError(t, err)

	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	pingFrames, err := message.Encode(clientID, &message.Message{Kind: message.KindPing, Ping: &message.Ping{}})
	require.NoError(t, err)

	// Simulate the dispatcher's Ping handler: reply Pong to whatever
	// arrives at the server endpoint.
	received := make(chan *Received, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for {
			r, pollErr := srv.Poll(ctx)
			if pollErr != nil {
				return
			}
			if r == nil {
				continue
			}
			pongFrames, encErr := message.Encode(serverID, &message.Message{Kind: message.KindPong, Pong: &message.Pong{}})
			if encErr != nil {
				return
			}
			Reply(r.Conn, pongFrames)
			received <- r
			return
		}
	}()

	ep, liveURL, err := Dial([]string{"tcp://" + srv.Addr().String()}, time.Second, pingFrames)
	require.NoError(t, err)
	defer ep.Close()
	require.Equal(t, "tcp://"+srv.Addr().String(), liveURL)

	r := <-received
	require.Equal(t, message.KindPing, r.Msg.Kind)
	require.True(t, r.Msg.HasIdentity)
	require.Equal(t, clientID.Address(), r.Msg.Identity)
}
