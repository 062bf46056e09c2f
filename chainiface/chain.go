// Package chainiface defines the abstract chain boundary the swarm
// consumes (§6). Nothing in this package touches block validation,
// consensus, or canonical encoding rules — it only names the shape a real
// chain implementation must present, mirroring how the teacher's own
// chain/service package sits behind a narrow interface consumed by
// network/p2p rather than the other way around.
package chainiface

import (
	"context"

	"github.com/drep-project/dswarm/identity"
)

// Hash is an opaque block or transaction identifier. The swarm never
// interprets its bytes beyond equality and use as a map key.
type Hash [32]byte

func (h Hash) IsZero() bool { return h == Hash{} }

// Block is the minimal contract the swarm needs to relay and index blocks
// without understanding their contents.
type Block interface {
	Hash() Hash
	Index() int64
	PreviousHash() Hash
	Encode() ([]byte, error)
}

// Transaction is the minimal contract the swarm needs to relay transactions.
type Transaction interface {
	ID() Hash
	Encode() ([]byte, error)
}

// BlockLocator is a sparse, exponentially-spaced list of ancestor hashes
// used to find the common ancestor between two chains without walking
// every block (§4.5, §4.7).
type BlockLocator struct {
	Hashes []Hash
}

// Chain is the abstract boundary named in §6. The swarm subsystem only
// ever calls through this interface; it never imports a concrete
// blockchain implementation.
type Chain interface {
	// IndexBlockHash returns the hash at height i, or the tip's hash when
	// i == -1. The second return is false if no block exists at i.
	IndexBlockHash(i int64) (Hash, bool)

	// Tip returns the current head block. ok is false for an empty chain.
	Tip() (Block, bool)

	// BlockByHash looks up a block by hash.
	BlockByHash(h Hash) (Block, bool)

	// TransactionByID looks up a staged or committed transaction by id.
	TransactionByID(id Hash) (Transaction, bool)

	// FindNextHashes returns up to max hashes starting at the most recent
	// common ancestor named in locator (the ancestor's own hash first),
	// stopping at (and including) stop if it is encountered first.
	FindNextHashes(ctx context.Context, locator BlockLocator, stop Hash, max int) ([]Hash, error)

	// GetBlockLocator produces a BlockLocator for the current tip.
	GetBlockLocator() BlockLocator

	// Append extends the chain with block. Chain-level validation
	// failures are returned as-is; the swarm only propagates them.
	Append(ctx context.Context, b Block) error

	// DeleteAfter truncates the chain so that h is the new tip, dropping
	// every block appended after it (inclusive of h's former successors).
	DeleteAfter(ctx context.Context, h Hash) error

	// StageTransactions adds txs to the pending pool.
	StageTransactions(ctx context.Context, txs []Transaction) error
}

// Announcer is the minimal peer-identity context a handler needs when it
// must reach back out to whichever remote peer sent the message it is
// handling, without the chainiface package depending on peerset.
type Announcer interface {
	Address() identity.Address
}
