package memchain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drep-project/dswarm/chainiface"
)

func appendBlock(t *testing.T, c *Chain, height int64, prev chainiface.Hash) *Block {
	t.Helper()
	b := &Block{Height: height, Prev: prev, Payload: []byte{byte(height)}}
	require.NoError(t, c.Append(context.Background(), b))
	return b
}

func TestChainAppendAndTip(t *testing.T) {
	c := New(nil)
	_, ok := c.Tip()
	require.False(t, ok)

	b0 := appendBlock(t, c, 0, chainiface.Hash{})
	b1 := appendBlock(t, c, 1, b0.Hash())

	tip, ok := c.Tip()
	require.True(t, ok)
	require.Equal(t, b1.Hash(), tip.(*Block).Hash())
}

func TestGetBlockLocatorExponentialBackoff(t *testing.T) {
	c := New(nil)
	var prev chainiface.Hash
	for i := int64(0); i < 20; i++ {
		b := appendBlock(t, c, i, prev)
		prev = b.Hash()
	}

	loc := c.GetBlockLocator()
	require.NotEmpty(t, loc.Hashes)
	tipHash, _ := c.IndexBlockHash(-1)
	require.Equal(t, tipHash, loc.Hashes[0])
	genesisHash, _ := c.IndexBlockHash(0)
	require.Equal(t, genesisHash, loc.Hashes[len(loc.Hashes)-1])
}

func TestDeleteAfterTruncates(t *testing.T) {
	c := New(nil)
	b0 := appendBlock(t, c, 0, chainiface.Hash{})
	b1 := appendBlock(t, c, 1, b0.Hash())
	appendBlock(t, c, 2, b1.Hash())

	require.NoError(t, c.DeleteAfter(context.Background(), b0.Hash()))
	tip, ok := c.Tip()
	require.True(t, ok)
	require.Equal(t, b0.Hash(), tip.(*Block).Hash())

	_, ok = c.BlockByHash(b1.Hash())
	require.False(t, ok)
}

func TestFindNextHashesRespectsMax(t *testing.T) {
	c := New(nil)
	var prev chainiface.Hash
	var hashes []chainiface.Hash
	for i := int64(0); i < 5; i++ {
		b := appendBlock(t, c, i, prev)
		prev = b.Hash()
		hashes = append(hashes, b.Hash())
	}

	next, err := c.FindNextHashes(context.Background(), chainiface.BlockLocator{Hashes: []chainiface.Hash{hashes[1]}}, chainiface.Hash{}, 2)
	require.NoError(t, err)
	require.Equal(t, []chainiface.Hash{hashes[1], hashes[2]}, next)
}
