package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
)

// ErrUserExists is returned by CreateUser for a username already on file.
var ErrUserExists = errors.New("auth: user already exists")

const (
	userArgonTime    uint32 = 3
	userArgonMemory  uint32 = 4096
	userArgonThreads uint8  = 1
	userArgonKeyLen  uint32 = 32
	userSaltSize            = 16
)

// UserAccount is an admin-created principal: a username, a salted password
// hash, and the permission strings later embedded in tokens issued to it.
type UserAccount struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash"`
	Salt         string   `json:"salt"`
	Permissions  []string `json:"permissions"`
}

// UserStore is a JSON-file-backed table of UserAccounts, mirroring the
// teacher's wallet index persistence convention.
type UserStore struct {
	mu    sync.Mutex
	path  string
	users map[string]UserAccount
}

// NewUserStore opens (or initializes) the user store file at path.
func NewUserStore(path string) (*UserStore, error) {
	s := &UserStore{path: path, users: map[string]UserAccount{}}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user store: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.users); err != nil {
			return nil, fmt.Errorf("parse user store: %w", err)
		}
	}
	return s, nil
}

func (s *UserStore) write() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal user store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("mkdir user store dir: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// CreateUser adds a new user with the given password and permissions.
// It enforces username uniqueness and the local password policy.
func (s *UserStore) CreateUser(username, password string, perms []string) (*UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, ErrUserExists
	}
	if err := CheckPasswordPolicy(password); err != nil {
		return nil, err
	}

	salt := make([]byte, userSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, userArgonTime, userArgonMemory, userArgonThreads, userArgonKeyLen)

	acc := UserAccount{
		Username:     username,
		PasswordHash: base64.StdEncoding.EncodeToString(hash),
		Salt:         base64.StdEncoding.EncodeToString(salt),
		Permissions:  perms,
	}
	s.users[username] = acc
	if err := s.write(); err != nil {
		return nil, err
	}
	return &acc, nil
}

// Authenticate verifies username/password against the store, returning
// ErrUnauthenticated for any mismatch (unknown user or wrong password
// collapse to the same error, per the no-oracle rule).
func (s *UserStore) Authenticate(username, password string) (*UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[username]
	if !ok {
		return nil, ErrUnauthenticated
	}
	salt, err := base64.StdEncoding.DecodeString(acc.Salt)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	want, err := base64.StdEncoding.DecodeString(acc.PasswordHash)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	got := argon2.IDKey([]byte(password), salt, userArgonTime, userArgonMemory, userArgonThreads, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, ErrUnauthenticated
	}
	return &acc, nil
}
