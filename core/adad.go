package core

// ADAD framing (Associated-and-Authenticated Data): a varint length prefix
// for the associated half, the associated bytes, then whatever remains is
// the authenticated half. Used to frame incoming P2P messages so a decoder
// can pick the associated-data codec before committing to parsing the
// (larger, authenticated) payload.

import "google.golang.org/protobuf/encoding/protowire"

// ADAD holds the two halves of one framed message.
type ADAD struct {
	AssociatedData    []byte
	AuthenticatedData []byte
}

// EncodeADAD produces varint(len(associated)) || associated || authenticated.
func EncodeADAD(a ADAD) []byte {
	var out []byte
	out = protowire.AppendVarint(out, uint64(len(a.AssociatedData)))
	out = append(out, a.AssociatedData...)
	out = append(out, a.AuthenticatedData...)
	return out
}

// DecodeADAD reads the associated-data length varint, then that many bytes
// as associated data, then the remainder as authenticated data.
func DecodeADAD(buf []byte) (ADAD, error) {
	length, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return ADAD{}, Wrap(ErrDecode, "adad length")
	}
	buf = buf[n:]
	if uint64(len(buf)) < length {
		return ADAD{}, Wrap(ErrDecode, "adad associated data truncated")
	}
	associated := append([]byte(nil), buf[:length]...)
	authenticated := append([]byte(nil), buf[length:]...)
	return ADAD{AssociatedData: associated, AuthenticatedData: authenticated}, nil
}
