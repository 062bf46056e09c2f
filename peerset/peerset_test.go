package peerset

import (
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/drep-project/dswarm/swarmerr"
)

func newTestPeer(t *testing.T, url string) Peer {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	return NewPeer(priv.PubKey(), url)
}

func TestPeerSetAddContainsRemove(t *testing.T) {
	s := NewPeerSet()
	p := newTestPeer(t, "tcp://127.0.0.1:9000")

	require.False(t, s.Contains(p))
	s.Set(p, time.Now())
	require.True(t, s.Contains(p))
	require.Equal(t, 1, s.Count())

	require.True(t, s.Remove(p))
	require.False(t, s.Contains(p))
	require.False(t, s.Remove(p))
}

func TestPeerSetCopyToValidation(t *testing.T) {
	s := NewPeerSet()
	s.Set(newTestPeer(t, "tcp://a"), time.Now())

	_, err := s.CopyTo(nil, 0)
	require.ErrorIs(t, err, swarmerr.ErrNullArg)

	_, err = s.CopyTo(make([]Peer, 1), -1)
	require.ErrorIs(t, err, swarmerr.ErrRangeError)

	_, err = s.CopyTo(make([]Peer, 1), 1)
	require.ErrorIs(t, err, swarmerr.ErrArgError)

	out := make([]Peer, 2)
	n, err := s.CopyTo(out, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRemovedSetConsumeDue(t *testing.T) {
	r := NewRemovedSet()
	p := newTestPeer(t, "tcp://b")
	now := time.Now()
	r.Add(p, now.Add(-time.Second))

	require.True(t, r.Contains(p.Address()))
	due := r.ConsumeDue(now)
	require.Len(t, due, 1)
	require.False(t, r.Contains(p.Address()))
}

func TestRemovedSetDrop(t *testing.T) {
	r := NewRemovedSet()
	p := newTestPeer(t, "tcp://c")
	r.Add(p, time.Now())
	r.Drop(p.Address())
	require.False(t, r.Contains(p.Address()))
}

func TestLastSeenTimestampsMonotonic(t *testing.T) {
	l := NewLastSeenTimestamps()
	p := newTestPeer(t, "tcp://d")
	older := time.Now()
	newer := older.Add(time.Minute)

	l.Update(p.Address(), newer)
	l.Update(p.Address(), older)

	got, ok := l.Get(p.Address())
	require.True(t, ok)
	require.Equal(t, newer, got)
}
