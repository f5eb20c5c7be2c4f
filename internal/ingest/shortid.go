package ingest

import (
	"crypto/rand"
	"encoding/binary"
)

const (
	shortIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	shortIDLength   = 10
)

func encodeBase62(value uint64) string {
	if value == 0 {
		return "0"
	}
	var buf [11]byte // 62^11 > 2^64
	i := len(buf)
	for value > 0 {
		i--
		buf[i] = shortIDAlphabet[value%62]
		value /= 62
	}
	return string(buf[i:])
}

// RandomShortID returns a 10-char base62 identifier from 8 random bytes.
// A uint64 can encode to 11 base62 chars, so the result is clipped to 10
// and left-padded with '0' when shorter. Collision handling is the
// caller's responsibility.
func RandomShortID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	encoded := encodeBase62(binary.BigEndian.Uint64(b[:]))
	for len(encoded) < shortIDLength {
		encoded = "0" + encoded
	}
	return encoded[:shortIDLength], nil
}
