// Package auth verifies the bearer tokens the RPC facade's interceptor
// checks on every request: an ECDSA (P-256) signature over an opaque claims
// payload. It is an external collaborator of core — core never sees a
// token, only the AccountID/permissions a Verifier resolves from one.
package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var authLog = log.WithField("component", "auth")

// SetAuthLogger overrides the package-level logger entry used by this
// package.
func SetAuthLogger(l *log.Logger) {
	authLog = l.WithField("component", "auth")
}

// ErrUnauthenticated covers every bearer-token failure: missing header,
// malformed token, expired claims, bad signature. Callers map it straight to
// the RPC facade's Unauthenticated error code; none of the sub-cases are
// distinguished to the caller.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Claims is the payload an authenticated token certifies.
type Claims struct {
	Subject     string    `json:"sub"`
	Permissions []string  `json:"perms"`
	ExpiresAt   time.Time `json:"exp"`
}

// HasPermission reports whether perm is present, or "*" (superadmin) is.
func (c Claims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// Verifier authenticates a bearer token string (the raw header value, with
// or without a leading "Bearer ") into the Claims it certifies.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// ecdsaSignature is the ASN.1 DER shape of an ECDSA signature, matching the
// encoding crypto/ecdsa and most JOSE libraries produce.
type ecdsaSignature struct {
	R, S *big.Int
}

// ECDSAVerifier verifies tokens of the form "<base64url claims>.<base64url
// DER signature>" against a single fixed public key, the shape
// CHAMP_GENERATE_JWT_KEYS provisions at node bootstrap.
type ECDSAVerifier struct {
	pub      *ecdsa.PublicKey
	decodeFn func(string) (Claims, error)
	nowFn    func() time.Time
}

// NewECDSAVerifier builds a Verifier checking signatures against pub.
func NewECDSAVerifier(pub *ecdsa.PublicKey, decode func(string) (Claims, error)) *ECDSAVerifier {
	return &ECDSAVerifier{pub: pub, decodeFn: decode, nowFn: time.Now}
}

// Verify implements Verifier.
func (v *ECDSAVerifier) Verify(token string) (Claims, error) {
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrUnauthenticated
	}

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return Claims{}, ErrUnauthenticated
	}
	claimsPart, sigPart := parts[0], parts[1]

	sigBytes, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return Claims{}, ErrUnauthenticated
	}

	hash := sha256.Sum256([]byte(claimsPart))
	var sig ecdsaSignature
	if _, err := asn1.Unmarshal(sigBytes, &sig); err != nil {
		return Claims{}, ErrUnauthenticated
	}
	if !ecdsa.Verify(v.pub, hash[:], sig.R, sig.S) {
		return Claims{}, ErrUnauthenticated
	}

	claims, err := v.decodeFn(claimsPart)
	if err != nil {
		return Claims{}, ErrUnauthenticated
	}
	if !claims.ExpiresAt.IsZero() && v.nowFn().After(claims.ExpiresAt) {
		return Claims{}, ErrUnauthenticated
	}
	return claims, nil
}

// DecodeJSONClaims base64url-decodes claimsPart and unmarshals it as JSON
// Claims. Passed as the decode func to NewECDSAVerifier by callers that use
// a plain JSON claims payload rather than a custom format.
func DecodeJSONClaims(claimsPart string) (Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(claimsPart)
	if err != nil {
		return Claims{}, fmt.Errorf("decode claims: %w", err)
	}
	var c Claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return Claims{}, fmt.Errorf("unmarshal claims: %w", err)
	}
	return c, nil
}

// EncodeJSONClaims marshals c as JSON and base64url-encodes it, the inverse
// of DecodeJSONClaims. Used to build the claims segment a token's signature
// covers.
func EncodeJSONClaims(c Claims) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// GenerateKeyPair provisions a fresh P-256 ECDSA keypair, the operation
// behind the CLI's "admin generate-key" subcommand and the
// CHAMP_GENERATE_JWT_KEYS bootstrap knob.
func GenerateKeyPair(rand io.Reader) (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand)
	if err != nil {
		return nil, fmt.Errorf("generate ecdsa key: %w", err)
	}
	return key, nil
}

// Sign signs claimsPart (the base64url claims segment of a token) with key,
// returning the base64url DER signature segment. Used by the CLI and by
// tests constructing tokens.
func Sign(key *ecdsa.PrivateKey, claimsPart string) (string, error) {
	hash := sha256.Sum256([]byte(claimsPart))
	r, s, err := ecdsa.Sign(rand.Reader, key, hash[:])
	if err != nil {
		return "", fmt.Errorf("sign claims: %w", err)
	}
	der, err := asn1.Marshal(ecdsaSignature{R: r, S: s})
	if err != nil {
		return "", fmt.Errorf("marshal signature: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(der), nil
}
