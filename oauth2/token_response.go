package oauth2

import (
	"time"

	"github.com/jrsteele09/go-identity-client/internal/utils"
	xoauth2 "golang.org/x/oauth2"
)

// TokenResponse represents the response from the identity server token endpoint.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
type TokenResponse struct {
	// AccessToken is the bearer credential sent with every API call.
	// Usage: "Authorization: <token_type> <access_token>"
	AccessToken string `json:"access_token"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Note: This is a hint - actual expiration is in the JWT's "exp" claim
	ExpiresIn int `json:"expires_in,omitempty"`

	// TokenType indicates how to present the access token, usually "Bearer".
	TokenType string `json:"token_type"`

	// Scope is the space separated list of scopes actually granted.
	Scope string `json:"scope,omitempty"`

	// RefreshToken is only present when offline_access was requested.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// IdToken is only present when the openid scope was requested.
	IdToken *string `json:"id_token,omitempty"`
}

// Authorization returns the value of the Authorization header for this token.
func (tr TokenResponse) Authorization() string {
	return tr.TokenType + " " + tr.AccessToken
}

// ToOAuth2Token converts the response into an x/oauth2 token. issuedAt anchors
// ExpiresIn; a zero ExpiresIn yields a token without expiry.
func (tr TokenResponse) ToOAuth2Token(issuedAt time.Time) *xoauth2.Token {
	tok := &xoauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: utils.Deref(tr.RefreshToken),
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = issuedAt.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if tr.IdToken != nil {
		tok = tok.WithExtra(map[string]any{"id_token": *tr.IdToken})
	}
	return tok
}
