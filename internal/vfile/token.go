package vfile

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenBytes is the number of random bytes drawn for a token.
// Tokens are hex encoded, so the printable form is TokenHexLength characters.
const (
	TokenBytes     = 32
	TokenHexLength = TokenBytes * 2
)

// Credential is the (token, issuedAt, signature) triple carried by a vfile URL.
type Credential struct {
	Token     string
	IssuedAt  int64
	Signature string
}

// NewToken draws a fresh random token from crypto/rand.
func NewToken() string {
	b := make([]byte, TokenBytes)
	// crypto/rand.Read never returns an error since Go 1.24.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// LooksLikeToken reports whether s has the surface shape of a minted token:
// exactly TokenHexLength hex digits, either case.
//
// It is a heuristic only. A string passing it may still be forged; a string
// failing it was certainly never minted here.
func LooksLikeToken(s string) bool {
	if len(s) != TokenHexLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// isLowerHex reports whether s is non-empty lowercase hex of even length,
// i.e. exactly what hex.EncodeToString produces.
func isLowerHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
