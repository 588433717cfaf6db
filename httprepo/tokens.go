package httprepo

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-identity-client/auth"
	"github.com/jrsteele09/go-identity-client/grant"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/pkg/errors"
)

// TokenRepo posts grants to the token endpoint and tokens to the revocation endpoint.
type TokenRepo struct {
	client    *Client
	tokenURL  string
	revokeURL string
}

var _ auth.TokenRepo = (*TokenRepo)(nil)

func NewTokenRepo(client *Client, tokenURL, revokeURL string) (*TokenRepo, error) {
	if client == nil {
		return nil, errors.New("[NewTokenRepo] client is required")
	}
	if tokenURL == "" {
		return nil, errors.New("[NewTokenRepo] token URL is required")
	}
	if revokeURL == "" {
		return nil, errors.New("[NewTokenRepo] revocation URL is required")
	}
	return &TokenRepo{client: client, tokenURL: tokenURL, revokeURL: revokeURL}, nil
}

func (r *TokenRepo) Authorize(ctx context.Context, g grant.Grant) (oauth2.TokenResponse, error) {
	var resp oauth2.TokenResponse
	if err := r.client.do(ctx, formRequest(r.tokenURL, g.Params().Values()), &resp); err != nil {
		return oauth2.TokenResponse{}, errors.Wrapf(err, "[TokenRepo.Authorize] %s", g.GrantType())
	}
	return resp, nil
}

func (r *TokenRepo) Revoke(ctx context.Context, token string, hint oauth2.TokenTypeHint, basicAuth string) error {
	form := url.Values{"token": {token}}
	if hint != "" {
		form.Set("tokenTypeHint", string(hint))
	}
	req := formRequest(r.revokeURL, form)
	req.header = http.Header{"Authorization": {basicAuth}}
	if err := r.client.do(ctx, req, nil); err != nil {
		return errors.Wrapf(err, "[TokenRepo.Revoke] %s", hint)
	}
	return nil
}
