package core

import "strings"

// AddressSize is the fixed byte length of an AccountID: a 1-byte
// type/version prefix, a 20-byte key-hash, and a 3-byte checksum.
const AddressSize = 24

const addressPrefix byte = 0x00

// addressTextPrefix is stripped from, and optionally added to, the text
// form of an address.
const addressTextPrefix = "pog-"

// AccountID is a 24-byte account address: the sole external identifier for
// an account chain.
type AccountID [AddressSize]byte

// AddressOf derives the account address for a public key:
// [0x00] ++ H(publicKey)[0:20] ++ H([0x00] ++ H(publicKey)[0:20])[0:3].
func AddressOf(publicKey []byte) AccountID {
	var addr AccountID
	addr[0] = addressPrefix
	keyHash := H(publicKey)
	copy(addr[1:21], keyHash[:20])
	checksum := H(addr[:21])
	copy(addr[21:24], checksum[:3])
	return addr
}

// ValidateAddress recomputes the trailing checksum from the first 21 bytes
// and compares it, after checking the overall length.
func ValidateAddress(b []byte) error {
	if len(b) != AddressSize {
		return ErrInvalidSize
	}
	want := H(b[:21])
	for i := 0; i < 3; i++ {
		if b[21+i] != want[i] {
			return ErrInvalidChecksum
		}
	}
	return nil
}

// EncodeAddressText renders an address as zbase32 text, optionally
// uppercase, with no "pog-" prefix.
func EncodeAddressText(addr AccountID, uppercase bool) string {
	if uppercase {
		return ZbaseEncodeUpper(addr[:])
	}
	return ZbaseEncode(addr[:])
}

// DecodeAddressText is the inverse of EncodeAddressText: it does not strip
// a "pog-" prefix (use ParseAddress for that) and does not validate the
// checksum (use ValidateAddress for that).
func DecodeAddressText(text string) (AccountID, error) {
	raw, err := ZbaseDecode(text)
	if err != nil {
		return AccountID{}, err
	}
	if len(raw) != AddressSize {
		return AccountID{}, ErrInvalidSize
	}
	var addr AccountID
	copy(addr[:], raw)
	return addr, nil
}

// ParseAddress strips an optional "pog-" prefix, zbase32-decodes the
// remainder, and validates the resulting checksum.
func ParseAddress(text string) (AccountID, error) {
	text = strings.TrimPrefix(text, addressTextPrefix)
	addr, err := DecodeAddressText(text)
	if err != nil {
		return AccountID{}, err
	}
	if err := ValidateAddress(addr[:]); err != nil {
		return AccountID{}, err
	}
	return addr, nil
}

// String renders the address with the "pog-" prefix, lowercase.
func (a AccountID) String() string {
	return addressTextPrefix + EncodeAddressText(a, false)
}
