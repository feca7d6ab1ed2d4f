package auth

import (
	"crypto/rand"
	"errors"
	"path/filepath"
	"testing"
)

func TestWriteAndReadKeyPairPEMRoundTrip(t *testing.T) {
	key, err := GenerateKeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	dir := t.TempDir()
	privPath := filepath.Join(dir, "jwt_private.pem")
	pubPath := filepath.Join(dir, "jwt_public.pem")

	if err := WriteKeyPairPEM(privPath, pubPath, key); err != nil {
		t.Fatalf("write key pair: %v", err)
	}
	if !KeyPairExists(privPath, pubPath) {
		t.Fatal("KeyPairExists = false after writing both files")
	}

	gotPriv, err := ReadPrivateKeyPEM(privPath)
	if err != nil {
		t.Fatalf("read private key: %v", err)
	}
	if gotPriv.D.Cmp(key.D) != 0 {
		t.Fatal("round-tripped private key does not match original")
	}

	gotPub, err := ReadPublicKeyPEM(pubPath)
	if err != nil {
		t.Fatalf("read public key: %v", err)
	}
	if gotPub.X.Cmp(key.PublicKey.X) != 0 || gotPub.Y.Cmp(key.PublicKey.Y) != 0 {
		t.Fatal("round-tripped public key does not match original")
	}
}

func TestKeyPairExistsFalseWhenMissing(t *testing.T) {
	dir := t.TempDir()
	if KeyPairExists(filepath.Join(dir, "a"), filepath.Join(dir, "b")) {
		t.Fatal("KeyPairExists = true for nonexistent files")
	}
}

func TestReadPrivateKeyPEMMissingIsErrNoKeyPair(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadPrivateKeyPEM(filepath.Join(dir, "missing.pem"))
	if !errors.Is(err, ErrNoKeyPair) {
		t.Fatalf("err = %v, want ErrNoKeyPair", err)
	}
}
