package core

import "golang.org/x/crypto/sha3"

// DigestSize is the width in bytes of H, the digest used throughout the
// block-lattice: block ids, transaction ids and address checksums.
const DigestSize = 32

// H computes the SHA3-256 digest of the concatenation of its inputs.
func H(parts ...[]byte) [DigestSize]byte {
	h := sha3.New256()
	for _, p := range parts {
		h.Write(p)
	}
	var out [DigestSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
