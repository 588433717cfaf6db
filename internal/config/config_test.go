package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-identity-client/internal/config"
	"github.com/jrsteele09/go-identity-client/internal/testserver"
	"github.com/jrsteele09/go-identity-client/keystore"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Setenv("IDENTITY_BASE_URL", "https://id.example.com/")
	t.Setenv("IDENTITY_API_BASE_URL", "")
	t.Setenv("IDENTITY_USER_SCOPE", "")
	t.Setenv("IDENTITY_MAX_TRUSTED_DEVICES", "")
	t.Setenv("IDENTITY_KEY_BITS", "1024")
	t.Setenv("IDENTITY_DEVICE_CACHE_TTL", "not-a-duration")

	c := config.New()
	require.Equal(t, "https://id.example.com", c.GetBaseURL())
	require.Equal(t, "https://id.example.com", c.GetAPIBaseURL())
	require.Equal(t, "openid profile offline_access", c.GetUserScope())
	require.Equal(t, 1, c.GetMaxTrustedDevices())
	require.Equal(t, keystore.MinKeyBits, c.GetKeyBits())
	require.Equal(t, 5*time.Minute, c.GetDeviceCacheTTL())
	require.True(t, c.GetPersistentDeviceID())
}

func TestConfigClient(t *testing.T) {
	t.Setenv("IDENTITY_CLIENT_ID", "mobile-app")
	t.Setenv("IDENTITY_CLIENT_SECRET", "secret")
	t.Setenv("IDENTITY_APP_SCOPE", "identity")
	t.Setenv("IDENTITY_REDIRECT_URI", "app://callback")
	t.Setenv("IDENTITY_MAX_TRUSTED_DEVICES", "3")

	c := config.New()
	client := c.Client()
	require.Equal(t, "mobile-app", client.ID)
	require.Equal(t, "secret", client.Secret)
	require.Equal(t, "identity", client.AppScope)
	require.Equal(t, "app://callback", client.Urls.Authorization)
	require.Equal(t, 3, c.GetMaxTrustedDevices())
}

func TestDefaultEndpoints(t *testing.T) {
	e := config.DefaultEndpoints("https://id.example.com", "https://api.example.com")
	require.Equal(t, "https://id.example.com/connect/token", e.Token)
	require.Equal(t, "https://id.example.com/connect/revocation", e.Revocation)
	require.Equal(t, "https://id.example.com/my/devices/register/init", e.DeviceInitialize)
	require.Equal(t, "https://id.example.com/my/devices/connect/authorize", e.DeviceAuthorize)
	require.Equal(t, "https://id.example.com/my/devices/register/complete", e.DeviceComplete)
	require.Equal(t, "https://api.example.com", e.APIBase)
}

func TestDiscover(t *testing.T) {
	server := testserver.Start()
	t.Cleanup(server.Close)

	e, err := config.Discover(context.Background(), server.URL, "")
	require.NoError(t, err)
	require.Equal(t, server.URL+testserver.RouteToken, e.Token)
	require.Equal(t, server.URL+testserver.RouteAuthorize, e.Authorization)
	require.Equal(t, server.URL+testserver.RouteRevocation, e.Revocation)
	require.Equal(t, server.URL+testserver.RouteEndSession, e.EndSession)
	require.Equal(t, server.URL+testserver.RouteUserInfo, e.UserInfo)
	require.Equal(t, server.URL+testserver.RouteDeviceComplete, e.DeviceComplete)
	require.Equal(t, server.URL, e.APIBase)
	require.Contains(t, e.ScopesSupported, "offline_access")

	_, err = config.Discover(context.Background(), server.URL+"/missing", "")
	require.Error(t, err)
}
