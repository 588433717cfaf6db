package auth

import (
	"net/url"

	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/jrsteele09/go-identity-client/oauth2"
)

// AuthorizationURL builds the browser URL for the authorization code flow.
// An empty prompt defaults to login.
func (as *AuthorizationService) AuthorizationURL(pkce oauth2.PKCE, prompt oauth2.PromptType) (string, error) {
	u, err := parseEndpoint(as.endpoints.Authorization)
	if err != nil {
		return "", err
	}
	redirectURI := as.client.Urls.Authorization
	if redirectURI == "" {
		return "", autherr.MalformedURL(redirectURI, nil)
	}
	if prompt == "" {
		prompt = oauth2.PromptLogin
	}

	q := u.Query()
	setNonEmpty(q, "client_id", as.client.ID)
	setNonEmpty(q, "client_secret", as.client.Secret)
	setNonEmpty(q, "scope", as.client.UserScope)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", string(oauth2.CodeResponseType))
	q.Set("response_mode", string(oauth2.QueryResponseMode))
	q.Set("prompt", string(prompt))
	setNonEmpty(q, "nonce", pkce.Nonce)
	setNonEmpty(q, "code_challenge", pkce.Challenge)
	setNonEmpty(q, "code_challenge_method", string(pkce.Method))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EndSessionURL builds the browser logout URL for the current id token.
func (as *AuthorizationService) EndSessionURL() (string, error) {
	u, err := parseEndpoint(as.endpoints.EndSession)
	if err != nil {
		return "", err
	}
	redirectURI := as.client.Urls.PostLogout
	if redirectURI == "" {
		return "", autherr.MalformedURL(redirectURI, nil)
	}

	q := u.Query()
	setNonEmpty(q, "id_token_hint", as.tokens.Current().IDToken)
	q.Set("post_logout_redirect_uri", redirectURI)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, autherr.MalformedURL(raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, autherr.MalformedURL(raw, nil)
	}
	return u, nil
}

func setNonEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
