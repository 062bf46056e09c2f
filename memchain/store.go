package memchain

import (
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/drep-project/dswarm/swarmerr"
)

// blockPrefix namespaces block keys the same way the teacher's
// chain/store package prefixes stake-storage keys with a constant string
// before hashing (chain/store/stakestore.go).
const blockPrefix = "memchain/block/"

// Store is an optional leveldb-backed persistence layer for Chain,
// grounded on the teacher's database.Database key/value wrapper
// (database/db.go) but simplified to a direct get/put, since the
// reference chain has no competing writers needing the teacher's
// transaction/journal machinery.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens (creating if necessary) a leveldb database at dir.
func OpenStore(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, swarmerr.ErrIOError
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func blockKey(h [32]byte) []byte {
	key := make([]byte, 0, len(blockPrefix)+len(h))
	key = append(key, blockPrefix...)
	key = append(key, h[:]...)
	return key
}

// PutBlock persists b under its hash.
func (s *Store) PutBlock(b *Block) error {
	raw, err := b.Encode()
	if err != nil {
		return err
	}
	if err := s.db.Put(blockKey([32]byte(b.Hash())), raw, nil); err != nil {
		return swarmerr.ErrIOError
	}
	return nil
}

// GetBlock loads the block stored under hash h, if any.
func (s *Store) GetBlock(h [32]byte) (*Block, error) {
	raw, err := s.db.Get(blockKey(h), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, swarmerr.ErrIOError
	}
	return DecodeBlock(raw)
}

// LoadInto replays every persisted block into a fresh in-memory Chain
// ordered by height, used when the demo binary restarts from disk.
func (s *Store) LoadInto(c *Chain) error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var blocks []*Block
	for iter.Next() {
		key := iter.Key()
		if len(key) < len(blockPrefix) || string(key[:len(blockPrefix)]) != blockPrefix {
			continue
		}
		b, err := DecodeBlock(iter.Value())
		if err != nil {
			return err
		}
		blocks = append(blocks, b)
	}
	if err := iter.Error(); err != nil {
		return swarmerr.ErrIOError
	}

	for i := 0; i < len(blocks)-1; i++ {
		for j := i + 1; j < len(blocks); j++ {
			if blocks[j].Height < blocks[i].Height {
				blocks[i], blocks[j] = blocks[j], blocks[i]
			}
		}
	}
	for _, b := range blocks {
		h := b.Hash()
		c.blocks = append(c.blocks, b)
		c.index[h] = len(c.blocks) - 1
	}
	return nil
}
