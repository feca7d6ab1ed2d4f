package core

// zbase32 implements the z-base-32 alphabet used for account address text
// representation. Ported from the node's Rust zbase32 module
// (itself derived from https://github.com/matusf/z-base-32), kept
// byte-for-byte compatible with its bit packing so existing addresses
// round-trip identically.

import "fmt"

const zbaseCharsLower = "ybndrfg8ejkmcpqxot1uwisza345h769"
const zbaseCharsUpper = "YBNDRFG8EJKMCPQXOT1UWISZA345H769"

// zbaseInverse maps an ASCII byte to its 5-bit value, or -1 if the byte is
// not part of the zbase32 alphabet (either case).
var zbaseInverse = buildZbaseInverse()

func buildZbaseInverse() [123]int8 {
	var inv [123]int8
	for i := range inv {
		inv[i] = -1
	}
	for i := 0; i < len(zbaseCharsLower); i++ {
		inv[zbaseCharsLower[i]] = int8(i)
		inv[zbaseCharsUpper[i]] = int8(i)
	}
	return inv
}

// ErrZbaseDecode is returned when a text string contains a byte outside the
// zbase32 alphabet.
var ErrZbaseDecode = fmt.Errorf("zbase32: %w", ErrInvalidSymbol)

func zbaseEncodeInternal(data []byte, alphabet string) string {
	out := make([]byte, 0, (len(data)*8+4)/5)
	for i := 0; i < len(data); i += 5 {
		end := i + 5
		if end > len(data) {
			end = len(data)
		}
		var buf [5]byte
		copy(buf[:], data[i:end])

		out = append(out,
			alphabet[(buf[0]&0xF8)>>3],
			alphabet[(buf[0]&0x07)<<2|(buf[1]&0xC0)>>6],
			alphabet[(buf[1]&0x3E)>>1],
			alphabet[(buf[1]&0x01)<<4|(buf[2]&0xF0)>>4],
			alphabet[(buf[2]&0x0F)<<1|(buf[3]&0x80)>>7],
			alphabet[(buf[3]&0x7C)>>2],
			alphabet[(buf[3]&0x03)<<3|(buf[4]&0xE0)>>5],
			alphabet[buf[4]&0x1F],
		)
	}
	expected := (len(data)*8 + 4) / 5
	return string(out[:expected])
}

// ZbaseEncode encodes data with the lowercase zbase32 alphabet.
func ZbaseEncode(data []byte) string {
	return zbaseEncodeInternal(data, zbaseCharsLower)
}

// ZbaseEncodeUpper encodes data with the uppercase zbase32 alphabet.
func ZbaseEncodeUpper(data []byte) string {
	return zbaseEncodeInternal(data, zbaseCharsUpper)
}

// ZbaseDecode decodes a zbase32 string, rejecting any byte outside the
// alphabet with ErrZbaseDecode.
func ZbaseDecode(text string) ([]byte, error) {
	out := make([]byte, 0, len(text)*5/8)
	for i := 0; i < len(text); i += 8 {
		end := i + 8
		if end > len(text) {
			end = len(text)
		}
		var buf [8]byte
		for j := i; j < end; j++ {
			c := text[j]
			if int(c) >= len(zbaseInverse) || zbaseInverse[c] == -1 {
				return nil, ErrZbaseDecode
			}
			buf[j-i] = byte(zbaseInverse[c])
		}
		out = append(out,
			buf[0]<<3|buf[1]>>2,
			buf[1]<<6|buf[2]<<1|buf[3]>>4,
			buf[3]<<4|buf[4]>>1,
			buf[4]<<7|buf[5]<<2|buf[6]>>3,
			buf[6]<<5|buf[7],
		)
	}
	want := len(text) * 5 / 8
	if want > len(out) {
		want = len(out)
	}
	return out[:want], nil
}
