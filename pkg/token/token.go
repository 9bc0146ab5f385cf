// Package token signs opaque values with HMAC-SHA256 so they can be handed
// to clients and verified on the way back.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidToken is returned for tokens that are malformed or carry a bad signature.
var ErrInvalidToken = errors.New("invalid token")

// Signer signs and verifies values with a single secret key.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer keyed by secret. An empty secret gets a random
// 32-byte key, so tokens do not survive a restart.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		key, err := GenerateSecretKey()
		if err != nil {
			return nil, err
		}
		secret = key
	}
	return &Signer{key: secret}, nil
}

// GenerateSecretKey returns 32 cryptographically random bytes.
func GenerateSecretKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *Signer) mac(value string) []byte {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(value))
	return m.Sum(nil)
}

// Sign returns "value.signature" with a base64url signature.
func (s *Signer) Sign(value string) string {
	return value + "." + base64.RawURLEncoding.EncodeToString(s.mac(value))
}

// Verify checks a token produced by Sign and returns the original value.
func (s *Signer) Verify(token string) (string, error) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return "", ErrInvalidToken
	}
	value, sig := token[:i], token[i+1:]

	actual, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidToken
	}
	// hmac.Equal runs in constant time.
	if !hmac.Equal(s.mac(value), actual) {
		return "", ErrInvalidToken
	}
	return value, nil
}
