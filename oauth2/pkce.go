package oauth2

import "github.com/jrsteele09/go-identity-client/internal/cryptorand"

// PKCE holds the public half of a proof key exchange plus the OIDC nonce.
// The verifier is returned separately by GeneratePKCE and must be kept by the
// caller until the authorization code is redeemed.
type PKCE struct {
	Challenge string
	Method    CodeMethodType
	Nonce     string
}

// GeneratePKCE creates a fresh S256 challenge and nonce, returning the verifier alongside.
func GeneratePKCE() (PKCE, string, error) {
	verifier, err := cryptorand.UniqueID()
	if err != nil {
		return PKCE{}, "", err
	}
	nonce, err := cryptorand.Nonce()
	if err != nil {
		return PKCE{}, "", err
	}
	return PKCE{
		Challenge: cryptorand.S256(verifier),
		Method:    CodeMethodTypeS256,
		Nonce:     nonce,
	}, verifier, nil
}
