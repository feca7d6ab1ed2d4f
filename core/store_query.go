package core

import "github.com/dgraph-io/badger/v4"

// BlockSort selects the order get_blocks walks in. SortDescending (0) is
// the spec's default: descending insertion order.
type BlockSort int

const (
	SortDescending BlockSort = iota
	SortAscending
)

// MaxBlocksLimit is the hard ceiling on get_blocks' limit parameter.
const MaxBlocksLimit = 100

// GetBlocks returns up to limit blocks (after skipping offset), in sort
// order, optionally restricted to one account's chain.
func (s *Store) GetBlocks(sort BlockSort, limit, offset int, account *AccountID) ([]Block, error) {
	if limit > MaxBlocksLimit {
		limit = MaxBlocksLimit
	}
	if limit <= 0 {
		return nil, nil
	}

	var ids []BlockID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = sort == SortDescending

		var prefix []byte
		if account != nil {
			prefix = concatKey(prefixBlockByAcc, account[:])
		} else {
			prefix = prefixGlobalSeq
		}
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := prefix
		if opts.Reverse {
			// Seek past the last key with this prefix so Reverse iteration
			// starts at the highest matching key.
			seekKey = append(append([]byte(nil), prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		}

		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(ids) >= limit {
				break
			}
			var id BlockID
			if err := it.Item().Value(func(val []byte) error {
				copy(id[:], val)
				return nil
			}); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, len(ids))
	for _, id := range ids {
		blk, err := s.GetBlock(id)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *blk)
	}
	return blocks, nil
}

// UnclaimedSend pairs a Send transaction's id with its decoded body.
type UnclaimedSend struct {
	ID          TransactionID
	Transaction Transaction
}

// GetUnclaimed returns the Send transactions addressed to account whose id
// is absent from the claim relation.
func (s *Store) GetUnclaimed(account AccountID) ([]UnclaimedSend, error) {
	var sendIDs []TransactionID
	prefix := concatKey(prefixRecvIndex, account[:])
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			var id TransactionID
			copy(id[:], key[len(prefix):])
			sendIDs = append(sendIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []UnclaimedSend
	for _, id := range sendIDs {
		claimID, err := s.GetSendRecipient(id)
		if err != nil {
			return nil, err
		}
		if claimID != nil {
			continue
		}
		tx, err := s.GetTransaction(id)
		if err != nil {
			return nil, err
		}
		out = append(out, UnclaimedSend{ID: id, Transaction: *tx})
	}
	return out, nil
}
