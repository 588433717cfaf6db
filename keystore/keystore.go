// Package keystore manages the tagged RSA key pairs that back quick login.
//
// A key pair exists at most once per Tag. Creating a key under a tag deletes
// whatever was stored there before. Keys created with gated set require the
// store's authentication gate to pass before every Load.
package keystore

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"

	"github.com/pkg/errors"
)

// Tag addresses a key pair in the store.
type Tag string

const (
	DevicePinTag   Tag = "device-pin"
	FingerprintTag Tag = "fingerprint"
)

var (
	// ErrKeyNotFound is returned by Load when no key exists under the tag.
	ErrKeyNotFound = errors.New("keystore: key not found")
	// ErrUserCanceled is returned by Load when the user dismissed the authentication gate.
	ErrUserCanceled = errors.New("keystore: user canceled")
)

// SignatureDataType tells Sign whether the payload still needs hashing.
type SignatureDataType int

const (
	// Message payloads are hashed with SHA-256 before signing.
	Message SignatureDataType = iota
	// Digest payloads are already a SHA-256 digest.
	Digest
)

func (t SignatureDataType) String() string {
	if t == Digest {
		return "digest"
	}
	return "message"
}

// KeyStore is the platform key store capability.
type KeyStore interface {
	// Create deletes any key under tag and generates a new one.
	Create(ctx context.Context, tag Tag, gated bool) (*KeyPair, error)
	// Load returns ErrKeyNotFound or ErrUserCanceled in addition to store failures.
	Load(ctx context.Context, tag Tag, gated bool) (*KeyPair, error)
	// Delete reports whether a key was removed.
	Delete(ctx context.Context, tag Tag, gated bool) (bool, error)
}

// KeyPair is a handle on a stored key. The private half never leaves it.
type KeyPair struct {
	KeyID  string
	Tag    Tag
	Locked bool
	signer *rsa.PrivateKey
}

// PublicKey returns the public half.
func (kp *KeyPair) PublicKey() *rsa.PublicKey {
	return &kp.signer.PublicKey
}

// Sign produces an RSA PKCS#1 v1.5 SHA-256 signature.
func (kp *KeyPair) Sign(payload []byte, dataType SignatureDataType) ([]byte, error) {
	digest := payload
	if dataType == Message {
		sum := sha256.Sum256(payload)
		digest = sum[:]
	}
	if len(digest) != sha256.Size {
		return nil, errors.Errorf("[KeyPair.Sign] %s payload must be a %d byte digest", dataType, sha256.Size)
	}
	sig, err := rsa.SignPKCS1v15(nil, kp.signer, crypto.SHA256, digest)
	if err != nil {
		return nil, errors.Wrap(err, "[KeyPair.Sign]")
	}
	return sig, nil
}

// PublicKeyDER exports the public key as PKCS#1 DER.
func (kp *KeyPair) PublicKeyDER() []byte {
	return x509.MarshalPKCS1PublicKey(kp.PublicKey())
}

// PublicKeyPEM exports the public key in the layout the identity server expects.
func (kp *KeyPair) PublicKeyPEM() string {
	return DERToPEM(kp.PublicKeyDER())
}
