package core

import "time"

// PublicKeySize and SignatureSize are the Ed25519 key/signature widths used
// for every block signature in the lattice.
const (
	PublicKeySize = 32
	SignatureSize = 64
)

// BlockVersion is pinned at 1; the block format is versioned but this spec
// fixes the version.
const BlockVersion = 1

// BlockID and TransactionID are content-addressed digests: BlockID =
// H(data_bytes, public_key), TransactionID = H(block_id || index).
type BlockID [DigestSize]byte
type TransactionID [DigestSize]byte

func (id BlockID) String() string       { return ZbaseEncode(id[:]) }
func (id TransactionID) String() string { return ZbaseEncode(id[:]) }

// TxKind tags which variant a Transaction holds.
type TxKind uint8

const (
	TxSend TxKind = iota + 1
	TxClaim
	TxOpen
	TxDelegate
)

func (k TxKind) String() string {
	switch k {
	case TxSend:
		return "Send"
	case TxClaim:
		return "Claim"
	case TxOpen:
		return "Open"
	case TxDelegate:
		return "Delegate"
	default:
		return "Unknown"
	}
}

// Transaction is a tagged variant: exactly one of the per-kind fields is
// meaningful, selected by Kind.
type Transaction struct {
	Kind TxKind

	// Send
	Receiver AccountID
	Amount   uint64
	Data     []byte

	// Claim (and Open, which behaves identically: it claims whatever Send
	// this id resolves to, typically a genesis/treasury allocation)
	SendTransactionID TransactionID

	// Delegate
	Representative AccountID
}

// BlockHeader carries the signing metadata.
type BlockHeader struct {
	PublicKey [PublicKeySize]byte
	Signature [SignatureSize]byte
	Timestamp time.Time
}

// BlockData is the part of a Block that gets hashed and signed.
type BlockData struct {
	Version       uint32
	SignatureType uint32
	Balance       uint64
	Height        uint64
	Previous      *BlockID // nil iff Height == 0
	Transactions  []Transaction
}

// Block is a signed, content-addressed unit of an account chain.
type Block struct {
	Header BlockHeader
	Data   BlockData
}

// Account returns the AccountID owning this block, derived from its public
// key.
func (b *Block) Account() AccountID {
	return AddressOf(b.Header.PublicKey[:])
}

// ID computes BlockID = H(data_bytes, public_key).
func (b *Block) ID() (BlockID, error) {
	dataBytes, err := EncodeBlockData(&b.Data)
	if err != nil {
		return BlockID{}, err
	}
	return H(dataBytes, b.Header.PublicKey[:]), nil
}

// TransactionIDAt computes TransactionID = H(block_id || index as BE u32)
// for the transaction at position i within block blockID.
func TransactionIDAt(blockID BlockID, i uint32) TransactionID {
	var idxBytes [4]byte
	idxBytes[0] = byte(i >> 24)
	idxBytes[1] = byte(i >> 16)
	idxBytes[2] = byte(i >> 8)
	idxBytes[3] = byte(i)
	return TransactionID(H(blockID[:], idxBytes[:]))
}

// Account is the derived view of an account chain's current state.
type Account struct {
	ID             AccountID
	Representative AccountID
	LatestBlockID  BlockID
}
