package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	id, err := New()
	require.NoError(t, err)

	msg := []byte("ping from a peer")
	sig, err := id.Sign(msg)
	require.NoError(t, err)

	addr, ok := Verify(msg, sig)
	require.True(t, ok)
	require.Equal(t, id.Address(), addr)
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	id, err := New()
	require.NoError(t, err)

	sig, err := id.Sign([]byte("original"))
	require.NoError(t, err)

	addr, ok := Verify([]byte("tampered"), sig)
	require.True(t, ok, "recovery still succeeds, but recovers a different address")
	require.NotEqual(t, id.Address(), addr)
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	_, ok := Verify([]byte("msg"), []byte("too short"))
	require.False(t, ok)
}

func TestAddressFromPubKeyIsDeterministic(t *testing.T) {
	id, err := New()
	require.NoError(t, err)

	a1 := AddressFromPubKey(id.PublicKey())
	a2 := AddressFromPubKey(id.PublicKey())
	require.Equal(t, a1, a2)
	require.False(t, a1.IsZero())
}
