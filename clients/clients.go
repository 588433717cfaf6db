package clients

import (
	"encoding/base64"
	"strings"
)

// Urls are the browser redirect targets registered for the client.
type Urls struct {
	Authorization string `json:"authorization"` // redirect_uri for the authorization code flow
	PostLogout    string `json:"postLogout"`    // post_logout_redirect_uri for end session
}

// Client is the identity of this application at the identity server.
type Client struct {
	ID        string `json:"id"`
	Secret    string `json:"secret,omitempty"`
	UserScope string `json:"userScope"` // requested for grants acting on behalf of a user
	AppScope  string `json:"appScope"`  // requested for client_credentials
	Urls      Urls   `json:"urls"`
}

// IsPublic returns true if the client has no secret
func (c *Client) IsPublic() bool {
	return c.Secret == ""
}

// Scope returns the scope to request for a grant.
func (c *Client) Scope(userGrant bool) string {
	if userGrant {
		return c.UserScope
	}
	return c.AppScope
}

// HasScope checks if the user scope includes the given scope
func (c *Client) HasScope(scope string) bool {
	for _, s := range strings.Fields(c.UserScope) {
		if s == scope {
			return true
		}
	}
	return false
}

// BasicAuth returns the value of an HTTP Basic Authorization header for the client credentials.
func (c *Client) BasicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.ID+":"+c.Secret))
}
