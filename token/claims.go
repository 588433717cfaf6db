package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-identity-client/internal/utils"
	"github.com/pkg/errors"
)

// Claims are the access token claims the client cares about. The signature
// is not checked; the identity server is the only consumer that validates it.
type Claims struct {
	jwt.RegisteredClaims
	ClientID         string `json:"client_id,omitempty"`
	Scope            any    `json:"scope,omitempty"` // string or array depending on server
	OtpAuthenticated bool   `json:"otp_authenticated,omitempty"`
}

// Scopes returns the granted scopes whichever form the server used.
func (c *Claims) Scopes() []string {
	return utils.Scopes(c.Scope)
}

// ParseClaims reads the claims of a JWT without verifying it.
func ParseClaims(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, errors.Wrap(err, "[ParseClaims]")
	}
	return claims, nil
}

// Claims parses the stored access token.
func (s *Store) Claims() (*Claims, error) {
	r := s.Current()
	if r.IsEmpty() {
		return nil, ErrNoToken
	}
	return ParseClaims(r.AccessToken)
}
