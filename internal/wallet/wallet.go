// Package wallet implements the node's encrypted keystore envelope: an
// Ed25519 seed locked behind an Argon2id-derived key under XChaCha20-Poly1305
// AEAD. It is a deliberately thin external collaborator of core: core never
// touches a private key, only the AccountID and signatures a Wallet hands it.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"champ/core"
)

var walletLog = log.WithField("component", "wallet")

// SetWalletLogger overrides the package-level logger entry used by Wallet
// and Keystore.
func SetWalletLogger(l *log.Logger) {
	walletLog = l.WithField("component", "wallet")
}

// ErrUnlockFailed is returned for any keystore unlock failure: wrong
// password, corrupt ciphertext, unsupported cipher/kdf, truncated field. The
// caller never learns which, so a password-guessing attacker gets no oracle.
var ErrUnlockFailed = errors.New("wallet: unlock failed")

// keystoreVersion is the only version this package reads or writes. The
// original source checked version == 0 on write and version == 1 on read;
// this is pinned to 1 both ways.
const keystoreVersion = 1

const (
	cipherName = "chacha20-poly1305-aead"
	kdfName    = "argon2id"

	// Argon2id parameters, written into every keystore so a future
	// hardening pass can raise them without breaking old files.
	argonTime    uint32 = 3
	argonMemory  uint32 = 4096
	argonThreads uint8  = 1
	argonKeyLen  uint32 = chacha20poly1305.KeySize
	saltSize            = 16
)

// Keystore is the on-disk JSON envelope for an encrypted seed, matching the
// wire shape byte-for-byte (field names and nesting included).
type Keystore struct {
	Version int            `json:"version"`
	Crypto  keystoreCrypto `json:"crypto"`
}

type keystoreCrypto struct {
	Cipher       string               `json:"cipher"`
	CipherParams keystoreCipherParams `json:"cipherparams"`
	CipherText   string               `json:"ciphertext"`
	KDF          string               `json:"kdf"`
	KDFParams    keystoreKDFParams    `json:"kdfparams"`
}

type keystoreCipherParams struct {
	Nonce string `json:"nonce"`
}

type keystoreKDFParams struct {
	Salt string `json:"salt"`
	V    uint32 `json:"v"`
	M    uint32 `json:"m"`
	Y    uint32 `json:"y"`
	P    uint8  `json:"p"`
}

// Wallet holds an unlocked Ed25519 keypair and the account it derives.
type Wallet struct {
	Account    core.AccountID
	PublicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

// Generate creates a fresh Ed25519 keypair and wraps it as a Wallet.
func Generate() (*Wallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Wallet{
		Account:    core.AddressOf(pub),
		PublicKey:  pub,
		privateKey: priv,
	}, nil
}

// FromSeed rebuilds a Wallet from a raw 32-byte Ed25519 seed, the form stored
// (encrypted) in a Keystore's ciphertext.
func FromSeed(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("wallet: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{
		Account:    core.AddressOf(pub),
		PublicKey:  pub,
		privateKey: priv,
	}, nil
}

// GenerateWithMnemonic creates a fresh Ed25519 seed from 256 bits of BIP-39
// entropy and returns both the Wallet and the 24-word mnemonic a user is
// expected to write down; the seed can be reconstructed from the mnemonic
// alone via FromMnemonic.
func GenerateWithMnemonic() (*Wallet, string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("derive mnemonic: %w", err)
	}
	w, err := FromSeed(entropy)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// FromMnemonic rebuilds a Wallet from a previously issued BIP-39 mnemonic.
func FromMnemonic(mnemonic string) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("wallet: invalid mnemonic")
	}
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("decode mnemonic: %w", err)
	}
	return FromSeed(entropy)
}

// Seed returns the wallet's raw 32-byte Ed25519 seed, the value Encrypt
// locks into a Keystore.
func (w *Wallet) Seed() []byte {
	return w.privateKey.Seed()
}

// Sign signs msg with the wallet's private key.
func (w *Wallet) Sign(msg []byte) []byte {
	return ed25519.Sign(w.privateKey, msg)
}

// Wipe zeroes the in-memory private key so it doesn't linger on the heap
// after the wallet is done with. The Wallet must not be used afterwards.
func (w *Wallet) Wipe() {
	for i := range w.privateKey {
		w.privateKey[i] = 0
	}
}

// Encrypt locks seed behind password into a Keystore using Argon2id for key
// derivation and XChaCha20-Poly1305 for the AEAD.
func Encrypt(seed []byte, password string) (*Keystore, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	cipherText := aead.Seal(nil, nonce, seed, nil)

	return &Keystore{
		Version: keystoreVersion,
		Crypto: keystoreCrypto{
			Cipher:     cipherName,
			CipherText: base64.StdEncoding.EncodeToString(cipherText),
			CipherParams: keystoreCipherParams{
				Nonce: base64.StdEncoding.EncodeToString(nonce),
			},
			KDF: kdfName,
			KDFParams: keystoreKDFParams{
				Salt: base64.StdEncoding.EncodeToString(salt),
				V:    19,
				M:    argonMemory,
				Y:    argonTime,
				P:    argonThreads,
			},
		},
	}, nil
}

// Decrypt recovers the raw seed from ks under password. Every failure path
// — wrong password, bad base64, unsupported cipher/kdf name, truncated
// ciphertext — collapses to ErrUnlockFailed.
func Decrypt(ks *Keystore, password string) ([]byte, error) {
	if ks.Version != keystoreVersion {
		return nil, ErrUnlockFailed
	}
	if ks.Crypto.Cipher != cipherName || ks.Crypto.KDF != kdfName {
		return nil, ErrUnlockFailed
	}

	salt, err := base64.StdEncoding.DecodeString(ks.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, ErrUnlockFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(ks.Crypto.CipherParams.Nonce)
	if err != nil {
		return nil, ErrUnlockFailed
	}
	cipherText, err := base64.StdEncoding.DecodeString(ks.Crypto.CipherText)
	if err != nil {
		return nil, ErrUnlockFailed
	}

	p := ks.Crypto.KDFParams
	key := argon2.IDKey([]byte(password), salt, p.Y, p.M, p.P, argonKeyLen)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrUnlockFailed
	}
	seed, err := aead.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, ErrUnlockFailed
	}
	return seed, nil
}

// Marshal renders ks as indented JSON, the on-disk keystore file format.
func (ks *Keystore) Marshal() ([]byte, error) {
	return json.MarshalIndent(ks, "", "  ")
}

// UnmarshalKeystore parses the on-disk JSON keystore file format.
func UnmarshalKeystore(data []byte) (*Keystore, error) {
	var ks Keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	return &ks, nil
}
