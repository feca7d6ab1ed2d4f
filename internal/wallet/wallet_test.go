package wallet

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	seed := w.Seed()

	ks, err := Encrypt(seed, "correct horse battery staple")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ks.Version != 1 {
		t.Fatalf("version = %d, want 1", ks.Version)
	}
	if ks.Crypto.Cipher != "chacha20-poly1305-aead" || ks.Crypto.KDF != "argon2id" {
		t.Fatalf("unexpected cipher/kdf: %+v", ks.Crypto)
	}

	got, err := Decrypt(ks, "correct horse battery staple")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(seed) {
		t.Fatalf("round-tripped seed mismatch")
	}
}

func TestDecryptWrongPasswordIsUnlockFailed(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ks, err := Encrypt(w.Seed(), "right-password")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(ks, "wrong-password"); err != ErrUnlockFailed {
		t.Fatalf("decrypt with wrong password = %v, want ErrUnlockFailed", err)
	}
}

func TestDecryptRejectsUnsupportedCipherWithSameError(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ks, err := Encrypt(w.Seed(), "pw")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ks.Crypto.Cipher = "aes-256-gcm"
	if _, err := Decrypt(ks, "pw"); err != ErrUnlockFailed {
		t.Fatalf("decrypt with unknown cipher = %v, want ErrUnlockFailed (no oracle)", err)
	}
}

func TestKeystoreMarshalRoundTrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ks, err := Encrypt(w.Seed(), "pw")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	data, err := ks.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := UnmarshalKeystore(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Crypto.CipherText != ks.Crypto.CipherText {
		t.Fatalf("ciphertext did not survive marshal round-trip")
	}

	seed, err := Decrypt(back, "pw")
	if err != nil {
		t.Fatalf("decrypt unmarshaled keystore: %v", err)
	}
	if string(seed) != string(w.Seed()) {
		t.Fatalf("seed mismatch after marshal round-trip")
	}
}

func TestGenerateWithMnemonicRoundTrip(t *testing.T) {
	w, mnemonic, err := GenerateWithMnemonic()
	if err != nil {
		t.Fatalf("generate with mnemonic: %v", err)
	}
	if mnemonic == "" {
		t.Fatal("expected a non-empty mnemonic")
	}

	recovered, err := FromMnemonic(mnemonic)
	if err != nil {
		t.Fatalf("from mnemonic: %v", err)
	}
	if string(recovered.Seed()) != string(w.Seed()) {
		t.Fatal("recovered seed does not match original")
	}
	if recovered.Account != w.Account {
		t.Fatal("recovered account does not match original")
	}
}

func TestFromMnemonicRejectsInvalidMnemonic(t *testing.T) {
	if _, err := FromMnemonic("not a valid mnemonic phrase at all"); err == nil {
		t.Fatal("expected an error for an invalid mnemonic")
	}
}

func TestManagerGenerateAndUnlock(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	w, err := m.Generate("hunter2", "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	accounts := m.Accounts()
	if len(accounts) != 1 || accounts[0] != w.Account.String() {
		t.Fatalf("accounts = %v, want [%s]", accounts, w.Account.String())
	}

	if _, err := os.Stat(filepath.Join(dir, w.Account.String()+".json")); err != nil {
		t.Fatalf("wallet file not written: %v", err)
	}

	unlocked, err := m.Unlock(w.Account, "hunter2")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if string(unlocked.Seed()) != string(w.Seed()) {
		t.Fatalf("unlocked seed mismatch")
	}
}

func TestManagerGenerateWithMnemonicAndUnlock(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	w, mnemonic, err := m.GenerateWithMnemonic("hunter2", "dave")
	if err != nil {
		t.Fatalf("generate with mnemonic: %v", err)
	}
	if mnemonic == "" {
		t.Fatal("expected a non-empty mnemonic")
	}

	unlocked, err := m.Unlock(w.Account, "hunter2")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if string(unlocked.Seed()) != string(w.Seed()) {
		t.Fatal("unlocked seed mismatch")
	}
}

func TestManagerReopenPreservesIndex(t *testing.T) {
	dir := t.TempDir()
	m1, err := NewManager(dir)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	w, err := m1.Generate("pw", "bob")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	m2, err := NewManager(dir)
	if err != nil {
		t.Fatalf("reopen manager: %v", err)
	}
	accounts := m2.Accounts()
	if len(accounts) != 1 || accounts[0] != w.Account.String() {
		t.Fatalf("reopened accounts = %v, want [%s]", accounts, w.Account.String())
	}
}

func TestManagerUnlockWrongPassword(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	w, err := m.Generate("right", "carol")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.Unlock(w.Account, "wrong"); err != ErrUnlockFailed {
		t.Fatalf("unlock with wrong password = %v, want ErrUnlockFailed", err)
	}
}
