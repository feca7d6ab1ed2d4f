package core

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
)

// nextGlobalSeq returns the next value of the monotonic global block
// counter, persisting the increment within the same transaction as the
// rest of AddBlock's writes.
func (s *Store) nextGlobalSeq(txn *badger.Txn) (uint64, error) {
	var next uint64
	item, err := txn.Get(keyGlobalSeqCounter)
	switch err {
	case nil:
		if verr := item.Value(func(val []byte) error {
			next = binary.BigEndian.Uint64(val) + 1
			return nil
		}); verr != nil {
			return 0, verr
		}
	case badger.ErrKeyNotFound:
		next = 0
	default:
		return 0, err
	}
	if err := txn.Set(keyGlobalSeqCounter, beUint64(next)); err != nil {
		return 0, err
	}
	return next, nil
}

// AddBlock appends block to the Store inside a single atomic transaction:
// both block indices, the account's last_blk pointer, every transaction's
// three indices, and any delegate/claim side effects either all commit or
// all abort. The caller is expected to have already run block through
// Validator; AddBlock itself only enforces the storage-level invariants
// (no duplicate block/transaction ids, height-0 iff no prior last_blk,
// claims are consumed at most once) since those must hold regardless of
// how a block reached this call.
func (s *Store) AddBlock(block *Block) error {
	blockID, err := block.ID()
	if err != nil {
		return Wrap(err, "compute block id")
	}
	account := block.Account()

	return s.db.Update(func(txn *badger.Txn) error {
		lastBlkKey := concatKey(prefixAccountLastBlk, account[:])
		_, err := txn.Get(lastBlkKey)
		hasLast := err == nil
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}

		if block.Data.Height == 0 {
			if hasLast {
				return Wrap(ErrIndexConflict, "account %s already has a first block", account)
			}
		} else {
			if !hasLast {
				return Wrap(ErrNoLastBlock, "account %s has no prior block", account)
			}
			item, err := txn.Get(lastBlkKey)
			if err != nil {
				return err
			}
			var lastID BlockID
			if err := item.Value(func(val []byte) error { copy(lastID[:], val); return nil }); err != nil {
				return err
			}
			if block.Data.Previous == nil || *block.Data.Previous != lastID {
				return ErrIndexConflict
			}
		}

		blockByIDKey := concatKey(prefixBlockByID, blockID[:])
		if _, err := txn.Get(blockByIDKey); err == nil {
			return ErrDuplicateBlock
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		blockBytes, err := EncodeBlock(block)
		if err != nil {
			return Wrap(err, "encode block")
		}
		if err := txn.Set(blockByIDKey, blockBytes); err != nil {
			return err
		}
		blockByAccKey := concatKey(prefixBlockByAcc, account[:], beUint64(block.Data.Height))
		if err := txn.Set(blockByAccKey, blockID[:]); err != nil {
			return err
		}
		if err := txn.Set(lastBlkKey, blockID[:]); err != nil {
			return err
		}

		// Global insertion-order index: block ids are pseudo-random
		// digests, so a monotonic sequence is needed for get_blocks when
		// no account filter narrows the walk to one chain's height order.
		seq, err := s.nextGlobalSeq(txn)
		if err != nil {
			return err
		}
		if err := txn.Set(concatKey(prefixGlobalSeq, beUint64(seq)), blockID[:]); err != nil {
			return err
		}

		for i, tx := range block.Data.Transactions {
			txID := TransactionIDAt(blockID, uint32(i))
			txByIDKey := concatKey(prefixTxByID, txID[:])
			if _, err := txn.Get(txByIDKey); err == nil {
				return ErrDuplicateTransaction
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			txBytes := EncodeTransaction(&tx)
			if err := txn.Set(txByIDKey, txBytes); err != nil {
				return err
			}
			if err := txn.Set(concatKey(prefixTxBlockByID, txID[:]), blockID[:]); err != nil {
				return err
			}
			if err := txn.Set(concatKey(prefixTxByBlock, blockID[:], beUint64(uint64(i))), txBytes); err != nil {
				return err
			}

			switch tx.Kind {
			case TxDelegate:
				repKey := concatKey(prefixAccountRep, account[:])
				if old, err := txn.Get(repKey); err == nil {
					var oldRep AccountID
					if verr := old.Value(func(val []byte) error { copy(oldRep[:], val); return nil }); verr != nil {
						return verr
					}
					if err := txn.Delete(concatKey(prefixDelegatorIndex, oldRep[:], account[:])); err != nil {
						return err
					}
				} else if err != badger.ErrKeyNotFound {
					return err
				}
				if err := txn.Set(repKey, tx.Representative[:]); err != nil {
					return err
				}
				if err := txn.Set(concatKey(prefixDelegatorIndex, tx.Representative[:], account[:]), []byte{1}); err != nil {
					return err
				}
			case TxSend:
				if err := txn.Set(concatKey(prefixRecvIndex, tx.Receiver[:], txID[:]), []byte{1}); err != nil {
					return err
				}
			case TxClaim, TxOpen:
				claimKey := concatKey(prefixClaim, tx.SendTransactionID[:])
				if _, err := txn.Get(claimKey); err == nil {
					return ErrClaimDoubleSpend
				} else if err != badger.ErrKeyNotFound {
					return err
				}
				if err := txn.Set(claimKey, txID[:]); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
