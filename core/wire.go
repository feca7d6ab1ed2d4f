package core

// Wire encoding for Block, BlockData and Transaction: length-delimited,
// protobuf-style tagged messages built directly on the low-level varint/tag
// primitives in protowire, without a .proto/protoc step. Field numbers are
// stable and never reused; unknown fields are simply skipped, matching
// protobuf's forward-compatibility contract.

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

func timeFromUnixNano(nsec int64) time.Time {
	return time.Unix(0, nsec).UTC()
}

// Transaction field numbers.
const (
	fieldTxKind           = protowire.Number(1)
	fieldTxReceiver        = protowire.Number(2)
	fieldTxAmount          = protowire.Number(3)
	fieldTxData            = protowire.Number(4)
	fieldTxSendID          = protowire.Number(5)
	fieldTxRepresentative  = protowire.Number(6)
)

// BlockData field numbers.
const (
	fieldBDVersion       = protowire.Number(1)
	fieldBDSignatureType = protowire.Number(2)
	fieldBDBalance       = protowire.Number(3)
	fieldBDHeight        = protowire.Number(4)
	fieldBDPrevious      = protowire.Number(5)
	fieldBDTransaction   = protowire.Number(6)
)

// Block field numbers (header + data, the form persisted by the Store).
const (
	fieldBlockPublicKey = protowire.Number(1)
	fieldBlockSignature = protowire.Number(2)
	fieldBlockTimestamp = protowire.Number(3)
	fieldBlockData      = protowire.Number(4)
)

// EncodeTransaction serializes a Transaction.
func EncodeTransaction(tx *Transaction) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTxKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(tx.Kind))
	switch tx.Kind {
	case TxSend:
		b = protowire.AppendTag(b, fieldTxReceiver, protowire.BytesType)
		b = protowire.AppendBytes(b, tx.Receiver[:])
		b = protowire.AppendTag(b, fieldTxAmount, protowire.VarintType)
		b = protowire.AppendVarint(b, tx.Amount)
		if len(tx.Data) > 0 {
			b = protowire.AppendTag(b, fieldTxData, protowire.BytesType)
			b = protowire.AppendBytes(b, tx.Data)
		}
	case TxClaim, TxOpen:
		b = protowire.AppendTag(b, fieldTxSendID, protowire.BytesType)
		b = protowire.AppendBytes(b, tx.SendTransactionID[:])
	case TxDelegate:
		b = protowire.AppendTag(b, fieldTxRepresentative, protowire.BytesType)
		b = protowire.AppendBytes(b, tx.Representative[:])
	}
	return b
}

// DecodeTransaction parses a serialized Transaction, failing ErrDecode on
// any malformed or truncated input.
func DecodeTransaction(buf []byte) (Transaction, error) {
	var tx Transaction
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return Transaction{}, Wrap(ErrDecode, "transaction tag")
		}
		buf = buf[n:]
		switch num {
		case fieldTxKind:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return Transaction{}, Wrap(ErrDecode, "transaction kind")
			}
			tx.Kind = TxKind(v)
			buf = buf[n:]
		case fieldTxReceiver:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 || len(v) != AddressSize {
				return Transaction{}, Wrap(ErrDecode, "transaction receiver")
			}
			copy(tx.Receiver[:], v)
			buf = buf[n:]
		case fieldTxAmount:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return Transaction{}, Wrap(ErrDecode, "transaction amount")
			}
			tx.Amount = v
			buf = buf[n:]
		case fieldTxData:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return Transaction{}, Wrap(ErrDecode, "transaction data")
			}
			tx.Data = append([]byte(nil), v...)
			buf = buf[n:]
		case fieldTxSendID:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 || len(v) != DigestSize {
				return Transaction{}, Wrap(ErrDecode, "transaction send id")
			}
			copy(tx.SendTransactionID[:], v)
			buf = buf[n:]
		case fieldTxRepresentative:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 || len(v) != AddressSize {
				return Transaction{}, Wrap(ErrDecode, "transaction representative")
			}
			copy(tx.Representative[:], v)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return Transaction{}, Wrap(ErrDecode, "transaction unknown field")
			}
			buf = buf[n:]
		}
	}
	return tx, nil
}

// EncodeBlockData serializes a BlockData.
func EncodeBlockData(d *BlockData) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldBDVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.Version))
	b = protowire.AppendTag(b, fieldBDSignatureType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.SignatureType))
	b = protowire.AppendTag(b, fieldBDBalance, protowire.VarintType)
	b = protowire.AppendVarint(b, d.Balance)
	b = protowire.AppendTag(b, fieldBDHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, d.Height)
	if d.Previous != nil {
		b = protowire.AppendTag(b, fieldBDPrevious, protowire.BytesType)
		b = protowire.AppendBytes(b, d.Previous[:])
	}
	for _, tx := range d.Transactions {
		b = protowire.AppendTag(b, fieldBDTransaction, protowire.BytesType)
		b = protowire.AppendBytes(b, EncodeTransaction(&tx))
	}
	return b, nil
}

// DecodeBlockData parses a serialized BlockData.
func DecodeBlockData(buf []byte) (BlockData, error) {
	var d BlockData
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return BlockData{}, Wrap(ErrDecode, "block data tag")
		}
		buf = buf[n:]
		switch num {
		case fieldBDVersion:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return BlockData{}, Wrap(ErrDecode, "block data version")
			}
			d.Version = uint32(v)
			buf = buf[n:]
		case fieldBDSignatureType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return BlockData{}, Wrap(ErrDecode, "block data sig type")
			}
			d.SignatureType = uint32(v)
			buf = buf[n:]
		case fieldBDBalance:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return BlockData{}, Wrap(ErrDecode, "block data balance")
			}
			d.Balance = v
			buf = buf[n:]
		case fieldBDHeight:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return BlockData{}, Wrap(ErrDecode, "block data height")
			}
			d.Height = v
			buf = buf[n:]
		case fieldBDPrevious:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 || len(v) != DigestSize {
				return BlockData{}, Wrap(ErrDecode, "block data previous")
			}
			var prev BlockID
			copy(prev[:], v)
			d.Previous = &prev
			buf = buf[n:]
		case fieldBDTransaction:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return BlockData{}, Wrap(ErrDecode, "block data transaction")
			}
			tx, err := DecodeTransaction(v)
			if err != nil {
				return BlockData{}, err
			}
			d.Transactions = append(d.Transactions, tx)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return BlockData{}, Wrap(ErrDecode, "block data unknown field")
			}
			buf = buf[n:]
		}
	}
	return d, nil
}

// EncodeBlock serializes a full Block (header + data) as stored in the
// Store and exchanged over the wire as a RawBlock frame.
func EncodeBlock(b *Block) ([]byte, error) {
	dataBytes, err := EncodeBlockData(&b.Data)
	if err != nil {
		return nil, err
	}
	var out []byte
	out = protowire.AppendTag(out, fieldBlockPublicKey, protowire.BytesType)
	out = protowire.AppendBytes(out, b.Header.PublicKey[:])
	out = protowire.AppendTag(out, fieldBlockSignature, protowire.BytesType)
	out = protowire.AppendBytes(out, b.Header.Signature[:])
	out = protowire.AppendTag(out, fieldBlockTimestamp, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.Header.Timestamp.UnixNano()))
	out = protowire.AppendTag(out, fieldBlockData, protowire.BytesType)
	out = protowire.AppendBytes(out, dataBytes)
	return out, nil
}

// DecodeBlock parses a serialized Block.
func DecodeBlock(buf []byte) (Block, error) {
	var blk Block
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return Block{}, Wrap(ErrDecode, "block tag")
		}
		buf = buf[n:]
		switch num {
		case fieldBlockPublicKey:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 || len(v) != PublicKeySize {
				return Block{}, Wrap(ErrDecode, "block public key")
			}
			copy(blk.Header.PublicKey[:], v)
			buf = buf[n:]
		case fieldBlockSignature:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 || len(v) != SignatureSize {
				return Block{}, Wrap(ErrDecode, "block signature")
			}
			copy(blk.Header.Signature[:], v)
			buf = buf[n:]
		case fieldBlockTimestamp:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return Block{}, Wrap(ErrDecode, "block timestamp")
			}
			blk.Header.Timestamp = timeFromUnixNano(int64(v))
			buf = buf[n:]
		case fieldBlockData:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return Block{}, Wrap(ErrDecode, "block data")
			}
			d, err := DecodeBlockData(v)
			if err != nil {
				return Block{}, err
			}
			blk.Data = d
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return Block{}, Wrap(ErrDecode, "block unknown field")
			}
			buf = buf[n:]
		}
	}
	return blk, nil
}
