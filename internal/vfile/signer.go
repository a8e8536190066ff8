package vfile

import (
	"crypto"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "golang.org/x/crypto/blake2b" // registers crypto.BLAKE2b_256
)

// SigningMethodHB2B256 is HMAC over BLAKE2b-256. It plugs into the same
// jwt.SigningMethodHMAC machinery as HS256 and only differs in the hash.
var SigningMethodHB2B256 = &jwt.SigningMethodHMAC{Name: "HB2B256", Hash: crypto.BLAKE2b_256}

func init() {
	jwt.RegisterSigningMethod(SigningMethodHB2B256.Alg(), func() jwt.SigningMethod {
		return SigningMethodHB2B256
	})
}

// DefaultAlgorithm is the MAC used when none is configured.
const DefaultAlgorithm = "HS256"

// MinSecretLength is the shortest server secret NewSigner accepts.
const MinSecretLength = 16

// Signer holds the server secret and computes vfile signatures.
//
// It is built once at startup and never mutated, so it is safe for
// concurrent use. Tests build their own Signer with a fixed secret.
type Signer struct {
	method *jwt.SigningMethodHMAC
	secret []byte
	now    func() time.Time
}

// Option customises a Signer.
type Option func(*Signer)

// WithClock replaces time.Now as the source of issuedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner creates a Signer for the given secret and algorithm name
// ("HS256" or "HB2B256"; empty selects DefaultAlgorithm).
func NewSigner(secret, algorithm string, opts ...Option) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("vfile: secret must be at least %d characters", MinSecretLength)
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}

	// Only keyed-hash methods make sense here: the same key signs and verifies.
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("vfile: unsupported MAC algorithm %q", algorithm)
	}
	if !method.Hash.Available() {
		return nil, fmt.Errorf("vfile: hash for %q is not linked into the binary", algorithm)
	}

	s := &Signer{
		method: method,
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Algorithm returns the configured MAC name.
func (s *Signer) Algorithm() string {
	return s.method.Alg()
}

// Mint issues a new credential bound to nickname.
func (s *Signer) Mint(nickname string) Credential {
	token := NewToken()
	issuedAt := s.now().Unix()
	return Credential{
		Token:     token,
		IssuedAt:  issuedAt,
		Signature: s.Sign(token, issuedAt, nickname),
	}
}

// Sign returns the hex MAC of "token:issuedAt:nickname".
func (s *Signer) Sign(token string, issuedAt int64, nickname string) string {
	sig, err := s.method.Sign(signingString(token, issuedAt, nickname), s.secret)
	if err != nil {
		// Unreachable: the key type and hash availability are checked in NewSigner.
		panic(fmt.Sprintf("vfile: signing failed: %v", err))
	}
	return hex.EncodeToString(sig)
}

// Verify recomputes the MAC for the claimed nickname and compares it with
// c.Signature in constant time. issuedAt is part of the signed payload and
// is not checked for freshness.
func (s *Signer) Verify(c Credential, nickname string) bool {
	if len(c.Signature) != 2*s.method.Hash.Size() || !isLowerHex(c.Signature) {
		return false
	}
	sig, err := hex.DecodeString(c.Signature)
	if err != nil {
		return false
	}

	// jwt's HMAC Verify compares with hmac.Equal, which is constant time.
	return s.method.Verify(signingString(c.Token, c.IssuedAt, nickname), sig, s.secret) == nil
}

func signingString(token string, issuedAt int64, nickname string) string {
	return fmt.Sprintf("%s:%d:%s", token, issuedAt, nickname)
}
