package repofake

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-identity-client/auth"
	"github.com/jrsteele09/go-identity-client/grant"
	"github.com/jrsteele09/go-identity-client/internal/utils"
	"github.com/jrsteele09/go-identity-client/oauth2"
)

var _ auth.TokenRepo = (*FakeTokenRepo)(nil)

// Revocation records one revoke call.
type Revocation struct {
	Token     string
	Hint      oauth2.TokenTypeHint
	BasicAuth string
}

// FakeTokenRepo issues numbered tokens and records every request.
type FakeTokenRepo struct {
	AuthorizeErr error
	RevokeErr    error
	// NoRefreshToken makes responses omit refresh_token.
	NoRefreshToken bool
	// Rewrite, when set, edits each response before it is returned.
	Rewrite func(*oauth2.TokenResponse)

	grants  []grant.Params
	revoked []Revocation
	issued  int
	lock    sync.Mutex
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{}
}

func (f *FakeTokenRepo) Authorize(_ context.Context, g grant.Grant) (oauth2.TokenResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.grants = append(f.grants, g.Params())
	if f.AuthorizeErr != nil {
		return oauth2.TokenResponse{}, f.AuthorizeErr
	}
	f.issued++
	resp := oauth2.TokenResponse{
		AccessToken: fmt.Sprintf("access-%d", f.issued),
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		IdToken:     utils.Ptr(fmt.Sprintf("id-%d", f.issued)),
	}
	if !f.NoRefreshToken {
		resp.RefreshToken = utils.Ptr(fmt.Sprintf("refresh-%d", f.issued))
	}
	if f.Rewrite != nil {
		f.Rewrite(&resp)
	}
	return resp, nil
}

func (f *FakeTokenRepo) Revoke(_ context.Context, token string, hint oauth2.TokenTypeHint, basicAuth string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.revoked = append(f.revoked, Revocation{Token: token, Hint: hint, BasicAuth: basicAuth})
	return f.RevokeErr
}

// Grants returns the parameters of every authorize call.
func (f *FakeTokenRepo) Grants() []grant.Params {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]grant.Params(nil), f.grants...)
}

// LastGrant returns the parameters of the latest authorize call.
func (f *FakeTokenRepo) LastGrant() grant.Params {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(f.grants) == 0 {
		return nil
	}
	return f.grants[len(f.grants)-1]
}

// Revocations returns every revoke call.
func (f *FakeTokenRepo) Revocations() []Revocation {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]Revocation(nil), f.revoked...)
}
