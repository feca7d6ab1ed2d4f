package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"champ/core"
)

// indexEntry records which user name a wallet file belongs to. Field names
// match the original index.json's short "a"/"u" keys.
type indexEntry struct {
	AccountAddress string `json:"a"`
	UserName       string `json:"u"`
}

// Manager owns a directory of encrypted wallet files plus an index.json
// mapping account addresses to the user names that generated them. One
// Manager should own a given directory; concurrent Generate calls are
// serialized by an internal mutex, mirroring the writer-lease role the
// config/wallet-manager share in the node's locking design.
type Manager struct {
	mu  sync.Mutex
	dir string
	idx []indexEntry
}

// NewManager opens (creating if necessary) a wallet directory at dir and
// loads its index.json.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create wallet dir: %w", err)
	}
	m := &Manager{dir: dir}
	if err := m.loadIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.dir, "index.json")
}

func (m *Manager) walletPath(account core.AccountID) string {
	return filepath.Join(m.dir, account.String()+".json")
}

func (m *Manager) loadIndex() error {
	data, err := os.ReadFile(m.indexPath())
	if os.IsNotExist(err) {
		m.idx = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("read wallet index: %w", err)
	}
	if len(data) == 0 {
		m.idx = nil
		return nil
	}
	var idx []indexEntry
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse wallet index: %w", err)
	}
	m.idx = idx
	return nil
}

func (m *Manager) writeIndex() error {
	data, err := json.MarshalIndent(m.idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode wallet index: %w", err)
	}
	return os.WriteFile(m.indexPath(), data, 0o600)
}

// Generate creates a new Ed25519 wallet, encrypts it under password, writes
// it to <dir>/<account>.json, records userName against it in index.json,
// and returns the unlocked Wallet.
func (m *Manager) Generate(password, userName string) (*Wallet, error) {
	w, err := Generate()
	if err != nil {
		return nil, err
	}
	return m.persist(w, password, userName)
}

// GenerateWithMnemonic is Generate, but the seed comes from a fresh BIP-39
// mnemonic which is returned alongside the Wallet so the caller can display
// it once for the user to write down.
func (m *Manager) GenerateWithMnemonic(password, userName string) (*Wallet, string, error) {
	w, mnemonic, err := GenerateWithMnemonic()
	if err != nil {
		return nil, "", err
	}
	persisted, err := m.persist(w, password, userName)
	if err != nil {
		return nil, "", err
	}
	return persisted, mnemonic, nil
}

// persist encrypts w under password, writes it to <dir>/<account>.json and
// records userName against it in index.json.
func (m *Manager) persist(w *Wallet, password, userName string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ks, err := Encrypt(w.Seed(), password)
	if err != nil {
		return nil, err
	}
	data, err := ks.Marshal()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(m.walletPath(w.Account), data, 0o600); err != nil {
		return nil, fmt.Errorf("write wallet file: %w", err)
	}

	m.idx = append(m.idx, indexEntry{AccountAddress: w.Account.String(), UserName: userName})
	if err := m.writeIndex(); err != nil {
		return nil, err
	}
	walletLog.WithField("account", w.Account.String()).Info("generated wallet")
	return w, nil
}

// Unlock reads and decrypts the wallet file for account under password.
func (m *Manager) Unlock(account core.AccountID, password string) (*Wallet, error) {
	data, err := os.ReadFile(m.walletPath(account))
	if err != nil {
		return nil, fmt.Errorf("read wallet file: %w", err)
	}
	ks, err := UnmarshalKeystore(data)
	if err != nil {
		return nil, ErrUnlockFailed
	}
	seed, err := Decrypt(ks, password)
	if err != nil {
		return nil, err
	}
	return FromSeed(seed)
}

// Accounts lists every account address currently in the index, in
// generation order.
func (m *Manager) Accounts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.idx))
	for i, e := range m.idx {
		out[i] = e.AccountAddress
	}
	return out
}
