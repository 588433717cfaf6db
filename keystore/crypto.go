package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"

	"github.com/jrsteele09/go-identity-client/internal/cryptorand"
	"github.com/pkg/errors"
)

const (
	// MinKeyBits is the smallest RSA modulus generated.
	MinKeyBits    = 2048
	pemLineLength = 65
	pemHeader     = "-----BEGIN RSA PUBLIC KEY-----"
	pemFooter     = "-----END RSA PUBLIC KEY-----"
)

func generateKeyPair(keyID string, tag Tag, gated bool, bits int) (*KeyPair, error) {
	if bits < MinKeyBits {
		bits = MinKeyBits
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate RSA key")
	}

	return &KeyPair{
		KeyID:  keyID,
		Tag:    tag,
		Locked: gated,
		signer: privateKey,
	}, nil
}

func exportPrivateKeyPEM(kp *KeyPair) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(kp.signer),
	}))
}

func loadRSAPrivateKeyFromPEM(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	privKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse RSA private key")
	}

	return privKey, nil
}

// DERToPEM wraps base64 DER at 65 characters per line between RSA PUBLIC KEY
// markers, without a trailing newline.
func DERToPEM(der []byte) string {
	encoded := base64.StdEncoding.EncodeToString(der)
	var lines []string
	for len(encoded) > pemLineLength {
		lines = append(lines, encoded[:pemLineLength])
		encoded = encoded[pemLineLength:]
	}
	if encoded != "" {
		lines = append(lines, encoded)
	}
	return pemHeader + "\n" + strings.Join(lines, "\n") + "\n" + pemFooter
}

// SignString signs the UTF-8 bytes of s and returns the signature in standard base64.
func SignString(kp *KeyPair, s string) (string, error) {
	sig, err := kp.Sign([]byte(s), Message)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// PreparePin derives the PIN hash sent to the server:
// base64(SHA256(base64(sign(pin + "-" + deviceID)))).
// The result depends on the pin, the device id and the private key.
func PreparePin(pin, deviceID string, kp *KeyPair) (string, error) {
	signed, err := SignString(kp, pin+"-"+deviceID)
	if err != nil {
		return "", errors.Wrap(err, "[PreparePin]")
	}
	return base64.StdEncoding.EncodeToString(cryptorand.SHA256([]byte(signed))), nil
}
