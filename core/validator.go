package core

// Validator checks a candidate block against a Store: signature, chain
// linkage, and balance conservation including cross-chain claim
// resolution. Grounded on the node's block validation pass, generalized
// to the full genesis/claim-typed rules spec.md §4.3 spells out (the
// original left verify_account_genesis_block unimplemented).

import (
	"crypto/ed25519"
)

// Validator holds the Store handle its checks read through.
type Validator struct {
	store      *Store
	skipChecks bool
}

// NewValidator constructs a Validator over store.
func NewValidator(store *Store) *Validator {
	return &Validator{store: store}
}

// SetSkipChecks disables every check Validate normally performs, always
// reporting a block valid. Intended only for
// CHAMP_DEBUG_SKIP_BLOCK_VALIDATION-style local development.
func (v *Validator) SetSkipChecks(skip bool) {
	v.skipChecks = skip
}

// Validate runs the full check sequence from spec.md §4.3 and returns nil
// if block may be appended to store.
func (v *Validator) Validate(block *Block) error {
	if v.skipChecks {
		return nil
	}
	dataBytes, err := EncodeBlockData(&block.Data)
	if err != nil {
		return Wrap(ErrDataMissing, "encode block data")
	}

	if !ed25519.Verify(block.Header.PublicKey[:], dataBytes, block.Header.Signature[:]) {
		return ErrBadSignature
	}

	account := block.Account()
	prev, err := v.store.GetLatestBlock(account)
	switch {
	case err == ErrNoLastBlock:
		return v.validateGenesis(block)
	case err != nil:
		return err
	default:
		return v.validateContinuation(block, prev)
	}
}

func (v *Validator) validateGenesis(block *Block) error {
	if block.Data.Height != 0 || block.Data.Previous != nil {
		return ErrBadGenesis
	}
	if len(block.Data.Transactions) == 0 || block.Data.Transactions[0].Kind != TxOpen {
		return ErrBadGenesis
	}
	balance, err := v.fold(0, block.Data.Transactions)
	if err != nil {
		return err
	}
	if balance != block.Data.Balance {
		return ErrBadGenesis
	}
	return nil
}

func (v *Validator) validateContinuation(block *Block, prev *Block) error {
	if block.Data.Height != prev.Data.Height+1 {
		return ErrHeightSkew
	}
	prevID, err := prev.ID()
	if err != nil {
		return err
	}
	if block.Data.Previous == nil || *block.Data.Previous != prevID {
		return ErrPreviousMismatch
	}

	balance, err := v.fold(int64(prev.Data.Balance), block.Data.Transactions)
	if err != nil {
		return err
	}
	if balance != block.Data.Balance {
		return ErrBalanceMismatch
	}
	return nil
}

// fold walks block's transactions, starting from startBalance, applying
// each one's effect on the running balance. The running balance is an
// int64 with an explicit overflow check on every step, so overflow or
// negative drift is caught before uint64 wraparound could mask it. A Send
// or Claim amount of 2^63 or more does not fit in int64 and is reported as
// ErrBalanceMismatch, as is any step whose result overflows int64.
func (v *Validator) fold(startBalance int64, txs []Transaction) (uint64, error) {
	balance := startBalance
	for _, tx := range txs {
		switch tx.Kind {
		case TxSend:
			next := balance - int64(tx.Amount)
			if next > balance {
				return 0, ErrBalanceMismatch // overflow of the subtraction
			}
			balance = next
		case TxClaim, TxOpen:
			amount, err := v.resolveClaim(tx.SendTransactionID)
			if err != nil {
				return 0, err
			}
			next := balance + int64(amount)
			if next < balance {
				return 0, ErrBalanceMismatch // overflow of the addition
			}
			balance = next
		case TxDelegate:
			// no balance effect
		}
	}
	if balance < 0 {
		return 0, ErrBalanceMismatch
	}
	return uint64(balance), nil
}

// resolveClaim looks up the Send referenced by sendTxID, enforcing that it
// exists, is actually a Send, and has not already been claimed elsewhere.
func (v *Validator) resolveClaim(sendTxID TransactionID) (uint64, error) {
	claimedBy, err := v.store.GetSendRecipient(sendTxID)
	if err != nil {
		return 0, err
	}
	if claimedBy != nil {
		return 0, ErrClaimDoubleSpend
	}
	tx, err := v.store.GetTransaction(sendTxID)
	if err != nil {
		if err == ErrNotFound {
			return 0, ErrClaimTargetMissing
		}
		return 0, err
	}
	if tx.Kind != TxSend {
		return 0, ErrClaimTargetWrongType
	}
	return tx.Amount, nil
}
