package core

// pending_blocks, dropped by the distillation but present in the original's
// sled backend: blocks the Blockpool has accepted into its queue but not
// yet committed, keyed by a monotonic id, so a restarted node can recover
// in-flight proposals instead of losing them to a crash between accepting
// a proposal and reaching quorum.

import "github.com/dgraph-io/badger/v4"

// PutPending records block under pendingID, overwriting any prior entry.
func (s *Store) PutPending(pendingID uint64, block *Block) error {
	blockBytes, err := EncodeBlock(block)
	if err != nil {
		return Wrap(err, "encode pending block")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(concatKey(prefixPending, beUint64(pendingID)), blockBytes)
	})
}

// GetPending returns the block recorded under pendingID, or (nil, nil) if
// absent.
func (s *Store) GetPending(pendingID uint64) (*Block, error) {
	var blk Block
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(concatKey(prefixPending, beUint64(pendingID)))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			decoded, err := DecodeBlock(val)
			if err != nil {
				return Wrap(ErrCorrupt, "decode pending block")
			}
			blk = decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &blk, nil
}

// DropPending removes the pending entry for pendingID; removing an absent
// entry is not an error (the Blockpool calls this once, after the block
// commits).
func (s *Store) DropPending(pendingID uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(concatKey(prefixPending, beUint64(pendingID)))
	})
}

// ListPending returns every pending (id, block) pair, used on node startup
// to recover in-flight proposals into the Blockpool.
func (s *Store) ListPending() (map[uint64]Block, error) {
	out := make(map[uint64]Block)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefixPending})
		defer it.Close()
		for it.Seek(prefixPending); it.ValidForPrefix(prefixPending); it.Next() {
			key := it.Item().KeyCopy(nil)
			id := beDecodeUint64(key[len(prefixPending):])
			err := it.Item().Value(func(val []byte) error {
				blk, err := DecodeBlock(val)
				if err != nil {
					return Wrap(ErrCorrupt, "decode pending block")
				}
				out[id] = blk
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func beDecodeUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
