package grant_test

import (
	"testing"

	"github.com/jrsteele09/go-identity-client/clients"
	"github.com/jrsteele09/go-identity-client/grant"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/jrsteele09/go-identity-client/thisdevice"
	"github.com/stretchr/testify/require"
)

var (
	testClient = &clients.Client{
		ID:        "mobile",
		Secret:    "secret",
		UserScope: "openid offline_access",
		AppScope:  "identity",
	}
	testIDs = thisdevice.IDs{Device: "device-abc", Registration: "reg-42"}
)

func allGrants() map[string]grant.Grant {
	return map[string]grant.Grant{
		"password":           grant.Password{Username: "john", Password: "pwd"},
		"refresh":            grant.RefreshToken{Token: "rt"},
		"client credentials": grant.ClientCredentials{},
		"authorization code": grant.AuthorizationCode{Code: "c", CodeVerifier: "v", RedirectURI: "app://cb"},
		"otp":                grant.OtpAuthenticated{Token: "at", Otp: "000000", Channel: oauth2.ChannelSms},
		"device pin":         grant.DevicePin("hash"),
		"device biometric":   grant.DeviceBiometric("chal", "sig", "ver", "pem"),
	}
}

func TestDecoratorsNeverDropOrOverrideBaseFields(t *testing.T) {
	for name, g := range allGrants() {
		t.Run(name, func(t *testing.T) {
			base := g.Params()
			decorated := grant.WithAuthorizationDetails(
				grant.WithDeviceIDs(grant.WithClient(g, testClient), testIDs),
				`[{"type":"payment"}]`,
			)
			merged := decorated.Params()

			for _, kv := range base {
				v, ok := merged.Get(kv.Key)
				require.True(t, ok, "missing %s", kv.Key)
				require.Equal(t, kv.Value, v, "overwrote %s", kv.Key)
			}
			require.Equal(t, base.Keys(), merged.Keys()[:len(base)])

			v, _ := merged.Get("client_id")
			require.Equal(t, "mobile", v)
			v, _ = merged.Get("device_id")
			require.Equal(t, "device-abc", v)
			v, _ = merged.Get("registration_id")
			require.Equal(t, "reg-42", v)
			v, _ = merged.Get("authorization_details")
			require.Equal(t, `[{"type":"payment"}]`, v)
			require.Equal(t, g.GrantType(), decorated.GrantType())

			// the undecorated grant is unchanged
			require.Equal(t, base, g.Params())
		})
	}
}

func TestBaseFieldWinsOverDecorator(t *testing.T) {
	g := grant.Compose(grant.Password{Username: "john", Password: "pwd"},
		grant.Params{{Key: "username", Value: "mallory"}, {Key: "extra", Value: "1"}},
		grant.Params{{Key: "extra", Value: "2"}},
	)
	p := g.Params()
	v, _ := p.Get("username")
	require.Equal(t, "john", v)
	v, _ = p.Get("extra")
	require.Equal(t, "2", v)
}

func TestScopeFollowsGrantKind(t *testing.T) {
	user := grant.WithClient(grant.Password{Username: "u", Password: "p"}, testClient).Params()
	scope, _ := user.Get("scope")
	require.Equal(t, "openid offline_access", scope)

	app := grant.WithClient(grant.ClientCredentials{}, testClient).Params()
	scope, _ = app.Get("scope")
	require.Equal(t, "identity", scope)
}

func TestEmptyValuesAreDropped(t *testing.T) {
	p := grant.WithDeviceIDs(grant.DevicePin("hash"), thisdevice.IDs{Device: "d"}).Params()
	_, ok := p.Get("registration_id")
	require.False(t, ok)
	_, ok = p.Get("code")
	require.False(t, ok)

	require.Equal(t, []string{"grant_type", "mode", "pin", "device_id"}, p.Keys())
	mode, _ := p.Get("mode")
	require.Equal(t, "pin", mode)
}

func TestDeviceBiometricParams(t *testing.T) {
	p := grant.DeviceBiometric("chal", "sig", "ver", "pem").Params()
	require.Equal(t, []string{"grant_type", "mode", "code", "code_signature", "code_verifier", "public_key"}, p.Keys())
	mode, _ := p.Get("mode")
	require.Equal(t, "fingerprint", mode)
	gt, _ := p.Get("grant_type")
	require.Equal(t, "device_authentication", gt)
}

func TestNestedCompositionKeepsBase(t *testing.T) {
	inner := grant.WithClient(grant.RefreshToken{Token: "rt"}, testClient)
	outer := grant.WithDeviceIDs(inner, testIDs)
	require.Equal(t, grant.RefreshToken{Token: "rt"}, grant.Base(outer))
	require.Equal(t, "grant_type=refresh_token&refresh_token=rt", grant.Base(outer).Params().Encode())

	_, ok := inner.Params().Get("device_id")
	require.False(t, ok)
}
