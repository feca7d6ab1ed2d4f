package auth

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoKeyPair is returned when an operation needs the node's ECDSA token
// signing keypair but none has been generated yet.
var ErrNoKeyPair = errors.New("auth: no jwt keypair configured")

// WriteKeyPairPEM writes key's private and public halves to privPath and
// pubPath in PEM, the teacher's TLS-material encoding convention
// (core/security.go uses pem.Decode/x509 for certificates; the same
// stdlib pairing is the idiomatic way to serialize a raw ECDSA key, since
// none of the pack's third-party libraries offer their own encoding).
func WriteKeyPairPEM(privPath, pubPath string, key *ecdsa.PrivateKey) error {
	privBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}
	if err := writePEMFile(privPath, "EC PRIVATE KEY", privBytes); err != nil {
		return err
	}
	return writePEMFile(pubPath, "PUBLIC KEY", pubBytes)
}

func writePEMFile(path, blockType string, der []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}

// ReadPrivateKeyPEM loads an ECDSA private key written by WriteKeyPairPEM.
func ReadPrivateKeyPEM(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoKeyPair
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode pem %s: no block found", path)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse ec private key %s: %w", path, err)
	}
	return key, nil
}

// ReadPublicKeyPEM loads an ECDSA public key written by WriteKeyPairPEM.
func ReadPublicKeyPEM(path string) (*ecdsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoKeyPair
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode pem %s: no block found", path)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key %s: %w", path, err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key at %s is not an ECDSA public key", path)
	}
	return ecPub, nil
}

// KeyPairExists reports whether both halves of a keypair are present on disk.
func KeyPairExists(privPath, pubPath string) bool {
	if _, err := os.Stat(privPath); err != nil {
		return false
	}
	if _, err := os.Stat(pubPath); err != nil {
		return false
	}
	return true
}
