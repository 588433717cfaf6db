package auth

import (
	"context"

	"github.com/jrsteele09/go-identity-client/grant"
	"github.com/jrsteele09/go-identity-client/oauth2"
)

// TokenRepo is the token and revocation endpoint pair of the identity server.
type TokenRepo interface {
	Authorize(ctx context.Context, g grant.Grant) (oauth2.TokenResponse, error)
	Revoke(ctx context.Context, token string, hint oauth2.TokenTypeHint, basicAuth string) error
}
