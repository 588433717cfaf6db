// Package cryptorand produces the random identifiers and digests used on the wire.
package cryptorand

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
)

const (
	uniqueIDLength = 32
	nonceLength    = 64
)

// Base64URL encodes without padding, '+' and '/' replaced by '-' and '_'.
func Base64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// RandomBytes returns n bytes from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	return RandomBytesFrom(rand.Reader, n)
}

// RandomBytesFrom reads exactly n bytes from r.
func RandomBytesFrom(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrap(err, "[cryptorand.RandomBytes] failed to read random bytes")
	}
	return b, nil
}

// RandomString returns n random bytes, base64url encoded.
func RandomString(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return Base64URL(b), nil
}

// UniqueID is a 256 bit random identifier, used for code verifiers and device ids.
func UniqueID() (string, error) {
	return RandomString(uniqueIDLength)
}

// Nonce is a 512 bit random value for the OIDC nonce parameter.
func Nonce() (string, error) {
	return RandomString(nonceLength)
}

// SHA256 returns the digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// S256 derives a PKCE challenge from a verifier.
func S256(verifier string) string {
	return Base64URL(SHA256([]byte(verifier)))
}
