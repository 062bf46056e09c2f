package memchain

import (
	"context"
	"sync"

	"github.com/drep-project/dswarm/chainiface"
	"github.com/drep-project/dswarm/swarmerr"
)

// Chain is the in-memory reference implementation of chainiface.Chain: an
// ordered block list plus a hash index, guarded by a single RWMutex, with a
// pending-transaction pool mutated only by StageTransactions.
type Chain struct {
	mu sync.RWMutex

	blocks []*Block
	index  map[chainiface.Hash]int // hash -> position in blocks

	pending map[chainiface.Hash]*Transaction

	store *Store // nil when running purely in memory
}

// New returns an empty chain, optionally backed by a Store for persistence.
func New(store *Store) *Chain {
	return &Chain{
		index:   make(map[chainiface.Hash]int),
		pending: make(map[chainiface.Hash]*Transaction),
		store:   store,
	}
}

// IndexBlockHash implements chainiface.Chain.
func (c *Chain) IndexBlockHash(i int64) (chainiface.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return chainiface.Hash{}, false
	}
	if i == -1 {
		return c.blocks[len(c.blocks)-1].Hash(), true
	}
	if i < 0 || int(i) >= len(c.blocks) {
		return chainiface.Hash{}, false
	}
	return c.blocks[i].Hash(), true
}

// Tip implements chainiface.Chain.
func (c *Chain) Tip() (chainiface.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return nil, false
	}
	return c.blocks[len(c.blocks)-1], true
}

// BlockByHash implements chainiface.Chain.
func (c *Chain) BlockByHash(h chainiface.Hash) (chainiface.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.index[h]
	if !ok {
		return nil, false
	}
	return c.blocks[pos], true
}

// TransactionByID implements chainiface.Chain.
func (c *Chain) TransactionByID(id chainiface.Hash) (chainiface.Transaction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.pending[id]
	if !ok {
		return nil, false
	}
	return tx, true
}

// FindNextHashes implements chainiface.Chain: it walks forward from the
// locator's best-matching ancestor (the first of locator.Hashes present in
// our index, or genesis if none match), whose own hash is the first one
// returned, stopping at stop or after max hashes.
func (c *Chain) FindNextHashes(ctx context.Context, locator chainiface.BlockLocator, stop chainiface.Hash, max int) ([]chainiface.Hash, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := 0
	for _, h := range locator.Hashes {
		if pos, ok := c.index[h]; ok {
			start = pos
			break
		}
	}

	var out []chainiface.Hash
	for i := start; i < len(c.blocks) && len(out) < max; i++ {
		h := c.blocks[i].Hash()
		out = append(out, h)
		if h == stop {
			break
		}
	}
	return out, nil
}

// GetBlockLocator implements chainiface.Chain with an exponential
// step-back from the tip (1, 2, 4, 8, ...), always ending at genesis, the
// same shape as the teacher lineage's reorg ancestor walk.
func (c *Chain) GetBlockLocator() chainiface.BlockLocator {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.blocks)
	if n == 0 {
		return chainiface.BlockLocator{}
	}
	var hashes []chainiface.Hash
	step := 1
	i := n - 1
	for i >= 0 {
		hashes = append(hashes, c.blocks[i].Hash())
		if i == 0 {
			break
		}
		i -= step
		if i < 0 {
			i = 0
		}
		step *= 2
	}
	return chainiface.BlockLocator{Hashes: hashes}
}

// Append implements chainiface.Chain.
func (c *Chain) Append(ctx context.Context, b chainiface.Block) error {
	blk, ok := b.(*Block)
	if !ok {
		return swarmerr.ErrInvalidMessage
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	h := blk.Hash()
	c.blocks = append(c.blocks, blk)
	c.index[h] = len(c.blocks) - 1

	if c.store != nil {
		if err := c.store.PutBlock(blk); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAfter implements chainiface.Chain: truncate so h is the new tip,
// mirroring reorganizeChain's detach of every node above the fork point.
func (c *Chain) DeleteAfter(ctx context.Context, h chainiface.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.index[h]
	if !ok {
		return swarmerr.ErrInvalidMessage
	}
	for i := pos + 1; i < len(c.blocks); i++ {
		delete(c.index, c.blocks[i].Hash())
	}
	c.blocks = c.blocks[:pos+1]
	return nil
}

// StageTransactions implements chainiface.Chain.
func (c *Chain) StageTransactions(ctx context.Context, txs []chainiface.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tx := range txs {
		t, ok := tx.(*Transaction)
		if !ok {
			return swarmerr.ErrInvalidMessage
		}
		c.pending[t.ID()] = t
	}
	return nil
}
