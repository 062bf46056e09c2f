// Package memchain is a reference chainiface.Chain implementation: an
// in-memory block list and index, with optional leveldb persistence,
// grounded on the teacher's chain/service/process.go reorg bookkeeping and
// database/db.go key/value wrapper. It exists to make the catch-up
// algorithm and its tests executable; it is not a production chain, and
// nothing outside tests and cmd/swarmnode imports it.
package memchain

import (
	"encoding/binary"

	drepbinary "github.com/drep-project/binary"
	"golang.org/x/crypto/sha3"

	"github.com/drep-project/dswarm/chainiface"
)

// Block is the reference block record: a height, a previous-block hash,
// and an opaque payload. Its hash is derived from its encoded bytes, the
// same way the teacher lineage derives addresses and storage keys from a
// Keccak256 digest of marshaled bytes (crypto/address.go, chain/store).
type Block struct {
	Height   int64
	Prev     chainiface.Hash
	Payload  []byte
}

// body is the binary.Marshal-able shape of a Block (chainiface.Hash is a
// fixed array, which binary.Marshal handles natively).
type body struct {
	Height  int64
	Prev    [32]byte
	Payload []byte
}

// Encode returns the canonical bytes of b.
func (b *Block) Encode() ([]byte, error) {
	return drepbinary.Marshal(&body{Height: b.Height, Prev: [32]byte(b.Prev), Payload: b.Payload})
}

// DecodeBlock parses bytes produced by Encode.
func DecodeBlock(raw []byte) (*Block, error) {
	var bd body
	if err := drepbinary.Unmarshal(raw, &bd); err != nil {
		return nil, err
	}
	return &Block{Height: bd.Height, Prev: chainiface.Hash(bd.Prev), Payload: bd.Payload}, nil
}

// Hash implements chainiface.Block.
func (b *Block) Hash() chainiface.Hash {
	raw, err := b.Encode()
	if err != nil {
		return chainiface.Hash{}
	}
	digest := sha3.NewLegacyKeccak256()
	digest.Write(raw)
	sum := digest.Sum(nil)
	var h chainiface.Hash
	copy(h[:], sum)
	return h
}

// Index implements chainiface.Block.
func (b *Block) Index() int64 { return b.Height }

// PreviousHash implements chainiface.Block.
func (b *Block) PreviousHash() chainiface.Hash { return b.Prev }

// Transaction is the reference transaction record.
type Transaction struct {
	Nonce   uint64
	Payload []byte
}

type txBody struct {
	Nonce   uint64
	Payload []byte
}

// Encode returns the canonical bytes of tx.
func (tx *Transaction) Encode() ([]byte, error) {
	return drepbinary.Marshal(&txBody{Nonce: tx.Nonce, Payload: tx.Payload})
}

// ID implements chainiface.Transaction: the Keccak256 digest of the
// encoded transaction, with the nonce folded in up front so that two
// transactions with identical payloads but different nonces never collide.
func (tx *Transaction) ID() chainiface.Hash {
	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], tx.Nonce)
	raw, err := tx.Encode()
	if err != nil {
		return chainiface.Hash{}
	}
	digest := sha3.NewLegacyKeccak256()
	digest.Write(nonceBuf[:])
	digest.Write(raw)
	sum := digest.Sum(nil)
	var h chainiface.Hash
	copy(h[:], sum)
	return h
}

// DecodeBlockAsChainBlock adapts DecodeBlock to the catchup.BlockDecoder
// shape that catchup and dispatch both use (a func returning the
// chainiface.Block interface rather than the concrete *Block type).
func DecodeBlockAsChainBlock(raw []byte) (chainiface.Block, error) {
	return DecodeBlock(raw)
}

// DecodeTransaction parses bytes produced by Transaction.Encode.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	var tb txBody
	if err := drepbinary.Unmarshal(raw, &tb); err != nil {
		return nil, err
	}
	return &Transaction{Nonce: tb.Nonce, Payload: tb.Payload}, nil
}

// DecodeTransactionAsChainTx adapts DecodeTransaction to the
// dispatch.TxDecoder shape.
func DecodeTransactionAsChainTx(raw []byte) (chainiface.Transaction, error) {
	return DecodeTransaction(raw)
}
