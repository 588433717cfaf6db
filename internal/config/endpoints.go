package config

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-identity-client/internal/utils"
	"github.com/pkg/errors"
)

// Endpoints are the identity server URLs the client talks to.
type Endpoints struct {
	Authorization string
	Token         string
	Revocation    string
	EndSession    string
	UserInfo      string

	DeviceInitialize string
	DeviceAuthorize  string
	DeviceComplete   string

	// APIBase is the root under which /api/my/devices lives.
	APIBase string

	// ScopesSupported is only known after discovery.
	ScopesSupported []string
}

// DefaultEndpoints derives every endpoint from the server's conventional paths.
func DefaultEndpoints(baseURL, apiBaseURL string) Endpoints {
	if apiBaseURL == "" {
		apiBaseURL = baseURL
	}
	return Endpoints{
		Authorization:    baseURL + "/connect/authorize",
		Token:            baseURL + "/connect/token",
		Revocation:       baseURL + "/connect/revocation",
		EndSession:       baseURL + "/connect/endsession",
		UserInfo:         baseURL + "/connect/userinfo",
		DeviceInitialize: baseURL + "/my/devices/register/init",
		DeviceAuthorize:  baseURL + "/my/devices/connect/authorize",
		DeviceComplete:   baseURL + "/my/devices/register/complete",
		APIBase:          apiBaseURL,
	}
}

// EndpointsFrom returns the default endpoints for c.
func EndpointsFrom(c EnvConfig) Endpoints {
	return DefaultEndpoints(c.GetBaseURL(), c.GetAPIBaseURL())
}

type discoveryClaims struct {
	RevocationEndpoint string `json:"revocation_endpoint"`
	EndSessionEndpoint string `json:"end_session_endpoint"`
	ScopesSupported    any    `json:"scopes_supported"`
}

// Discover reads the OpenID configuration of issuer. Endpoints the document
// does not advertise keep their default values; the device trust endpoints
// are never advertised.
func Discover(ctx context.Context, issuer, apiBaseURL string) (Endpoints, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return Endpoints{}, errors.Wrapf(err, "[config.Discover] %s", issuer)
	}

	var claims discoveryClaims
	if err := provider.Claims(&claims); err != nil {
		return Endpoints{}, errors.Wrap(err, "[config.Discover] claims")
	}

	endpoints := DefaultEndpoints(issuer, apiBaseURL)
	endpoint := provider.Endpoint()
	setIfPresent(&endpoints.Authorization, endpoint.AuthURL)
	setIfPresent(&endpoints.Token, endpoint.TokenURL)
	setIfPresent(&endpoints.UserInfo, provider.UserInfoEndpoint())
	setIfPresent(&endpoints.Revocation, claims.RevocationEndpoint)
	setIfPresent(&endpoints.EndSession, claims.EndSessionEndpoint)
	endpoints.ScopesSupported = utils.Scopes(claims.ScopesSupported)
	return endpoints, nil
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
