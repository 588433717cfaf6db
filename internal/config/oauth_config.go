package config

import (
	"time"

	"github.com/jrsteele09/go-identity-client/clients"
)

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetUserScope() string
	GetAppScope() string
	GetRedirectURI() string
	GetPostLogoutRedirectURI() string
	GetMaxTrustedDevices() int
	GetDeviceCacheTTL() time.Duration
	Client() *clients.Client
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetClientID() string {
	return GetEnv("IDENTITY_CLIENT_ID", "")
}

func (OAuth) GetClientSecret() string {
	return GetEnv("IDENTITY_CLIENT_SECRET", "")
}

func (OAuth) GetUserScope() string {
	return GetEnv("IDENTITY_USER_SCOPE", "openid profile offline_access")
}

func (OAuth) GetAppScope() string {
	return GetEnv("IDENTITY_APP_SCOPE", "")
}

func (OAuth) GetRedirectURI() string {
	return GetEnv("IDENTITY_REDIRECT_URI", "")
}

func (OAuth) GetPostLogoutRedirectURI() string {
	return GetEnv("IDENTITY_POST_LOGOUT_REDIRECT_URI", "")
}

// GetMaxTrustedDevices is how many other devices may stay trusted when this one is trusted.
func (OAuth) GetMaxTrustedDevices() int {
	return GetInt("IDENTITY_MAX_TRUSTED_DEVICES", 1)
}

func (OAuth) GetDeviceCacheTTL() time.Duration {
	return GetDuration("IDENTITY_DEVICE_CACHE_TTL", 5*time.Minute)
}

// Client assembles the client identity from the getters above.
func (o OAuth) Client() *clients.Client {
	return &clients.Client{
		ID:        o.GetClientID(),
		Secret:    o.GetClientSecret(),
		UserScope: o.GetUserScope(),
		AppScope:  o.GetAppScope(),
		Urls: clients.Urls{
			Authorization: o.GetRedirectURI(),
			PostLogout:    o.GetPostLogoutRedirectURI(),
		},
	}
}
