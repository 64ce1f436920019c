package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// Commitment is an opaque token binding a user's private attributes
// without revealing them. It is a salted hash, not a zero-knowledge
// proof: nothing in this service decodes it or derives anything from it
// beyond equality comparison.
type Commitment string

// NewCommitment derives a commitment from the given salt and parts.
// Parts are length-prefix separated so "ab"+"c" and "a"+"bc" commit to
// different values.
func NewCommitment(salt string, parts ...string) Commitment {
	h := sha256.New()
	h.Write([]byte(salt))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte{byte(len(p) >> 8), byte(len(p))})
		h.Write([]byte(p))
	}
	return Commitment(hex.EncodeToString(h.Sum(nil)))
}

// WellFormed reports whether the token has the fixed 64-hex-char shape.
func (c Commitment) WellFormed() bool {
	if len(c) != 64 {
		return false
	}
	_, err := hex.DecodeString(string(c))
	return err == nil
}
