package internal

import (
	"strings"
	"testing"
)

// FuzzDecodeRefreshToken drives the opaque token codec with arbitrary input.
// Decoding must never panic, and any input it accepts must be the canonical
// encoding of its own contents: 48 raw bytes pack into exactly 64 base64url
// characters with no slack bits, so re-encoding an accepted token must
// reproduce the input byte for byte.
func FuzzDecodeRefreshToken(f *testing.F) {
	seedSecret := [32]byte{}
	copy(seedSecret[:], "0123456789abcdef0123456789abcdef")
	if sid, err := NewSessionID(); err == nil {
		if token, err := EncodeRefreshToken(sid.String(), seedSecret); err == nil {
			f.Add(token)
			// One-character corruptions of a valid token.
			f.Add(token[1:])
			f.Add(token[:len(token)-1] + "_")
		}
	}
	f.Add("")
	f.Add(strings.Repeat("A", 64))
	f.Add(strings.Repeat("A", 63))
	f.Add(strings.Repeat("A", 65))
	f.Add("====")
	f.Add("not+base64url/chars")

	f.Fuzz(func(t *testing.T, input string) {
		sessionID, secret, err := DecodeRefreshToken(input)
		if err != nil {
			return
		}

		reEncoded, err := EncodeRefreshToken(sessionID, secret)
		if err != nil {
			t.Fatalf("decoded token failed to re-encode: %v", err)
		}
		if reEncoded != input {
			t.Errorf("codec is not canonical: decode(%q) re-encoded to %q", input, reEncoded)
		}

		if _, err := ParseSessionID(sessionID); err != nil {
			t.Errorf("decoded session id %q does not parse: %v", sessionID, err)
		}
	})
}

// FuzzParseSessionID checks that session id parsing never panics and that
// canonicalization is stable: parsing the String form of a parsed id must
// yield the same 16 bytes.
func FuzzParseSessionID(f *testing.F) {
	if sid, err := NewSessionID(); err == nil {
		f.Add(sid.String())
	}
	f.Add("")
	f.Add(strings.Repeat("Q", 22))
	f.Add(strings.Repeat("Q", 21))
	f.Add(strings.Repeat("Q", 23))
	f.Add("AAAAAAAAAAAAAAAAAAAAAA")

	f.Fuzz(func(t *testing.T, input string) {
		sid, err := ParseSessionID(input)
		if err != nil {
			return
		}
		again, err := ParseSessionID(sid.String())
		if err != nil {
			t.Fatalf("canonical form %q does not parse: %v", sid.String(), err)
		}
		if again != sid {
			t.Errorf("canonicalization unstable: %v vs %v", again, sid)
		}
	})
}
