package core

import (
	"bytes"
	"crypto/ed25519"
	"testing"
	"time"
)

func mustSignedBlock(t *testing.T, priv ed25519.PrivateKey, height uint64, prev *BlockID, txs []Transaction) Block {
	t.Helper()
	var pk [PublicKeySize]byte
	copy(pk[:], priv.Public().(ed25519.PublicKey))

	blk := Block{
		Header: BlockHeader{PublicKey: pk, Timestamp: time.Unix(1700000000, 0).UTC()},
		Data: BlockData{
			Version:      BlockVersion,
			Balance:      100,
			Height:       height,
			Previous:     prev,
			Transactions: txs,
		},
	}
	dataBytes, err := EncodeBlockData(&blk.Data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sig := ed25519.Sign(priv, dataBytes)
	copy(blk.Header.Signature[:], sig)
	return blk
}

func TestBlockIDMatchesDigest(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	blk := mustSignedBlock(t, priv, 0, nil, nil)

	id, err := blk.ID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	dataBytes, err := EncodeBlockData(&blk.Data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := H(dataBytes, blk.Header.PublicKey[:])
	if id != BlockID(want) {
		t.Fatalf("id mismatch")
	}
}

func TestTransactionIDMatchesDigest(t *testing.T) {
	var blockID BlockID
	for i := range blockID {
		blockID[i] = byte(i)
	}
	for _, idx := range []uint32{0, 1, 255, 1 << 20} {
		got := TransactionIDAt(blockID, idx)
		idxBytes := []byte{byte(idx >> 24), byte(idx >> 16), byte(idx >> 8), byte(idx)}
		want := H(blockID[:], idxBytes)
		if got != TransactionID(want) {
			t.Fatalf("tx id mismatch for index %d", idx)
		}
	}
}

func TestBlockWireRoundTrip(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	prevID := BlockID{1, 2, 3}
	txs := []Transaction{
		{Kind: TxSend, Receiver: AccountID{9, 9}, Amount: 42, Data: []byte("memo")},
		{Kind: TxDelegate, Representative: AccountID{7}},
	}
	blk := mustSignedBlock(t, priv, 5, &prevID, txs)

	encoded, err := EncodeBlock(&blk)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Header.PublicKey != blk.Header.PublicKey {
		t.Fatal("public key mismatch")
	}
	if decoded.Header.Signature != blk.Header.Signature {
		t.Fatal("signature mismatch")
	}
	if decoded.Data.Height != 5 || decoded.Data.Balance != 100 {
		t.Fatal("scalar field mismatch")
	}
	if decoded.Data.Previous == nil || *decoded.Data.Previous != prevID {
		t.Fatal("previous mismatch")
	}
	if len(decoded.Data.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(decoded.Data.Transactions))
	}
	if decoded.Data.Transactions[0].Amount != 42 || !bytes.Equal(decoded.Data.Transactions[0].Data, []byte("memo")) {
		t.Fatal("send transaction mismatch")
	}
	if decoded.Data.Transactions[1].Representative != (AccountID{7}) {
		t.Fatal("delegate transaction mismatch")
	}

	if !ed25519.Verify(priv.Public().(ed25519.PublicKey), mustEncodeBlockData(t, &decoded.Data), decoded.Header.Signature[:]) {
		t.Fatal("signature does not verify after round trip")
	}
}

func mustEncodeBlockData(t *testing.T, d *BlockData) []byte {
	t.Helper()
	b, err := EncodeBlockData(d)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func TestADADRoundTrip(t *testing.T) {
	cases := []ADAD{
		{AssociatedData: []byte("test_header"), AuthenticatedData: []byte("test_data")},
		{AssociatedData: []byte(""), AuthenticatedData: []byte("")},
		{AssociatedData: []byte(""), AuthenticatedData: []byte("test_data")},
		{AssociatedData: []byte("test_header"), AuthenticatedData: []byte("")},
		{AssociatedData: []byte("test_header"), AuthenticatedData: []byte("long_test_data")},
	}
	for _, c := range cases {
		encoded := EncodeADAD(c)
		decoded, err := DecodeADAD(encoded)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(decoded.AssociatedData, c.AssociatedData) {
			t.Fatalf("associated mismatch: got %q want %q", decoded.AssociatedData, c.AssociatedData)
		}
		if !bytes.Equal(decoded.AuthenticatedData, c.AuthenticatedData) {
			t.Fatalf("authenticated mismatch: got %q want %q", decoded.AuthenticatedData, c.AuthenticatedData)
		}
	}
}
