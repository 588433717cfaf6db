package auth_test

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"net/http"
	"net/url"
	"testing"

	"github.com/jrsteele09/go-identity-client/auth"
	authfake "github.com/jrsteele09/go-identity-client/auth/repofake"
	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/jrsteele09/go-identity-client/clients"
	deviceauthfake "github.com/jrsteele09/go-identity-client/deviceauth/repofake"
	"github.com/jrsteele09/go-identity-client/grant"
	"github.com/jrsteele09/go-identity-client/internal/cryptorand"
	"github.com/jrsteele09/go-identity-client/keystore"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/jrsteele09/go-identity-client/storage"
	"github.com/jrsteele09/go-identity-client/thisdevice"
	"github.com/jrsteele09/go-identity-client/token"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	testClientID       = "mobile-app"
	testClientSecret   = "mobile-secret"
	testUserScope      = "openid profile offline_access"
	testAppScope       = "identity"
	testRedirectURI    = "app://callback"
	testPostLogoutURI  = "app://logout"
	testAuthorizeURL   = "https://id.example.com/connect/authorize"
	testEndSessionURL  = "https://id.example.com/connect/endsession"
	testUsername       = "john.doe@example.com"
	testPassword       = "password123"
	testPin            = "1234"
	testRegistrationID = "reg-42"
	testChallenge      = "server-challenge"
)

// testFixture holds all test dependencies
type testFixture struct {
	tokenRepo  *authfake.FakeTokenRepo
	deviceAuth *deviceauthfake.FakeRepo
	device     *thisdevice.Repository
	keys       *keystore.Memory
	store      *token.Store
	gateErr    error
	service    *auth.AuthorizationService
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		tokenRepo:  authfake.NewFakeTokenRepo(),
		deviceAuth: deviceauthfake.NewFakeRepo(testChallenge, testRegistrationID),
	}
	f.keys = keystore.NewMemory(keystore.WithGate(func(context.Context, keystore.Tag) error { return f.gateErr }))

	var err error
	f.device, err = thisdevice.NewRepository(storage.NewMemory(), storage.NewMemory(), thisdevice.StaticInfo{Name: "test"})
	require.NoError(t, err)
	f.store, err = token.NewStore()
	require.NoError(t, err)

	client := &clients.Client{
		ID:        testClientID,
		Secret:    testClientSecret,
		UserScope: testUserScope,
		AppScope:  testAppScope,
		Urls:      clients.Urls{Authorization: testRedirectURI, PostLogout: testPostLogoutURI},
	}
	f.service, err = auth.NewAuthorizationService(auth.Repos{
		Tokens:     f.tokenRepo,
		DeviceAuth: f.deviceAuth,
		Device:     f.device,
		Keys:       f.keys,
	}, client, f.store, auth.WithEndpoints(auth.Endpoints{
		Authorization: testAuthorizeURL,
		EndSession:    testEndSessionURL,
	}))
	require.NoError(t, err)
	return f
}

// register simulates a completed device trust registration for tag.
func (f *testFixture) register(t *testing.T, tag keystore.Tag, gated bool) *keystore.KeyPair {
	t.Helper()
	key, err := f.keys.Create(context.Background(), tag, gated)
	require.NoError(t, err)
	require.NoError(t, f.device.SetRegistrationID(testRegistrationID))
	return key
}

func param(t *testing.T, p grant.Params, key string) string {
	t.Helper()
	v, ok := p.Get(key)
	require.True(t, ok, "missing param %s", key)
	return v
}

func TestNewAuthorizationService_Validation(t *testing.T) {
	_, err := auth.NewAuthorizationService(auth.Repos{}, &clients.Client{}, nil)
	require.Error(t, err)
}

func TestLoginPassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.LoginPassword(ctx, testUsername, testPassword))

	record := f.store.Current()
	require.Equal(t, "access-1", record.AccessToken)
	require.Equal(t, "refresh-1", record.RefreshToken)
	require.Equal(t, "id-1", record.IDToken)
	require.Equal(t, "Bearer", record.TokenType)

	ids, err := f.device.IDs()
	require.NoError(t, err)
	p := f.tokenRepo.LastGrant()
	require.Equal(t, "password", param(t, p, "grant_type"))
	require.Equal(t, testUsername, param(t, p, "username"))
	require.Equal(t, testClientID, param(t, p, "client_id"))
	require.Equal(t, testClientSecret, param(t, p, "client_secret"))
	require.Equal(t, testUserScope, param(t, p, "scope"))
	require.Equal(t, ids.Device, param(t, p, "device_id"))
	_, hasRegistration := p.Get("registration_id")
	require.False(t, hasRegistration)
}

func TestLogin_FailureKeepsPreviousTokens(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.LoginPassword(ctx, testUsername, testPassword))

	f.tokenRepo.AuthorizeErr = autherr.NewAPIError(http.StatusBadRequest, []byte(`{"error":"invalid_grant"}`))
	err := f.service.LoginPassword(ctx, testUsername, "wrong")
	require.True(t, autherr.IsStatus(err, http.StatusBadRequest))
	require.Equal(t, "access-1", f.store.Current().AccessToken)

	t.Run("response without access token", func(t *testing.T) {
		f.tokenRepo.AuthorizeErr = nil
		f.tokenRepo.Rewrite = func(resp *oauth2.TokenResponse) { resp.AccessToken = "" }
		err := f.service.LoginPassword(ctx, testUsername, testPassword)
		require.ErrorIs(t, err, token.ErrInvalidResponse)
		require.Equal(t, "access-1", f.store.Current().AccessToken)
		require.Equal(t, "Bearer access-1", f.store.Current().Authorization())
	})

	t.Run("response without token type", func(t *testing.T) {
		f.tokenRepo.Rewrite = func(resp *oauth2.TokenResponse) { resp.TokenType = "" }
		require.NoError(t, f.service.LoginPassword(ctx, testUsername, testPassword))
		current := f.store.Current()
		require.NotEqual(t, "access-1", current.AccessToken)
		require.Equal(t, "Bearer "+current.AccessToken, current.Authorization())
	})
}

func TestAuthorizeClient(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.service.AuthorizeClient(context.Background()))
	p := f.tokenRepo.LastGrant()
	require.Equal(t, "client_credentials", param(t, p, "grant_type"))
	require.Equal(t, testAppScope, param(t, p, "scope"))
}

func TestLoginAuthorizationCode(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.service.LoginAuthorizationCode(context.Background(), "the-code", "the-verifier"))
	p := f.tokenRepo.LastGrant()
	require.Equal(t, "authorization_code", param(t, p, "grant_type"))
	require.Equal(t, testRedirectURI, param(t, p, "redirect_uri"))
	require.Equal(t, "the-verifier", param(t, p, "code_verifier"))
}

func TestLoginOtp(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.LoginPassword(ctx, testUsername, testPassword))
	require.NoError(t, f.service.LoginOtp(ctx, "000000", ""))

	p := f.tokenRepo.LastGrant()
	require.Equal(t, "otp_authenticate", param(t, p, "grant_type"))
	require.Equal(t, "access-1", param(t, p, "token"))
	require.Equal(t, "access-2", f.store.Current().AccessToken)
}

func TestRefreshTokens(t *testing.T) {
	t.Run("missing refresh token makes no call", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.RefreshTokens(context.Background())
		require.ErrorIs(t, err, autherr.ErrRefreshTokenMissing)
		require.Empty(t, f.tokenRepo.Grants())
	})

	t.Run("uses stored refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()
		require.NoError(t, f.service.LoginPassword(ctx, testUsername, testPassword))
		require.NoError(t, f.service.RefreshTokens(ctx))

		p := f.tokenRepo.LastGrant()
		require.Equal(t, "refresh_token", param(t, p, "grant_type"))
		require.Equal(t, "refresh-1", param(t, p, "refresh_token"))
		require.Equal(t, "access-2", f.store.Current().AccessToken)
	})
}

func TestLoginPin(t *testing.T) {
	t.Run("registration id missing", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.keys.Create(context.Background(), keystore.DevicePinTag, false)
		require.NoError(t, err)
		err = f.service.LoginPin(context.Background(), testPin)
		require.ErrorIs(t, err, autherr.ErrRegistrationIDMissing)
		require.Empty(t, f.tokenRepo.Grants())
	})

	t.Run("key missing", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.device.SetRegistrationID(testRegistrationID))
		err := f.service.LoginPin(context.Background(), testPin)
		require.ErrorIs(t, err, autherr.ErrBiometricDataMissing)
	})

	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		key := f.register(t, keystore.DevicePinTag, false)
		require.NoError(t, f.service.LoginPin(context.Background(), testPin))

		ids, err := f.device.IDs()
		require.NoError(t, err)
		expected, err := keystore.PreparePin(testPin, ids.Device, key)
		require.NoError(t, err)

		p := f.tokenRepo.LastGrant()
		require.Equal(t, "device_authentication", param(t, p, "grant_type"))
		require.Equal(t, "pin", param(t, p, "mode"))
		require.Equal(t, expected, param(t, p, "pin"))
		require.Equal(t, testRegistrationID, param(t, p, "registration_id"))
		require.False(t, f.store.Current().IsEmpty())
	})
}

func TestLoginBiometric(t *testing.T) {
	payload := []byte("transfer 100 EUR")

	t.Run("success installs signing context", func(t *testing.T) {
		f := setupTestFixture(t)
		f.register(t, keystore.FingerprintTag, true)

		_, _, err := f.service.SignWithBiometricSecurityContext(payload, keystore.Message)
		require.ErrorIs(t, err, autherr.ErrSigningNotAvailable)

		require.NoError(t, f.service.LoginBiometric(context.Background()))

		require.Len(t, f.deviceAuth.Authorized, 1)
		authorizeReq := f.deviceAuth.Authorized[0]
		require.Equal(t, testRegistrationID, authorizeReq.RegistrationID)
		require.Equal(t, oauth2.BiometricMode, authorizeReq.Mode)

		p := f.tokenRepo.LastGrant()
		require.Equal(t, "fingerprint", param(t, p, "mode"))
		require.Equal(t, testChallenge, param(t, p, "code"))
		require.Equal(t, authorizeReq.CodeChallenge, cryptorand.S256(param(t, p, "code_verifier")))
		require.Contains(t, param(t, p, "public_key"), "BEGIN RSA PUBLIC KEY")

		signature, der, err := f.service.SignWithBiometricSecurityContext(payload, keystore.Message)
		require.NoError(t, err)
		pub, err := x509.ParsePKCS1PublicKey(der)
		require.NoError(t, err)
		digest := sha256.Sum256(payload)
		require.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature))

		t.Run("digest payload", func(t *testing.T) {
			signature, _, err := f.service.SignWithBiometricSecurityContext(digest[:], keystore.Digest)
			require.NoError(t, err)
			require.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature))
		})

		t.Run("bad digest reports signing failure", func(t *testing.T) {
			_, _, err := f.service.SignWithBiometricSecurityContext([]byte("short"), keystore.Digest)
			require.ErrorIs(t, err, autherr.ErrSigningFailed)
		})
	})

	t.Run("user canceled", func(t *testing.T) {
		f := setupTestFixture(t)
		f.register(t, keystore.FingerprintTag, true)
		f.gateErr = keystore.ErrUserCanceled

		err := f.service.LoginBiometric(context.Background())
		require.ErrorIs(t, err, autherr.ErrBiometricUserCanceled)
		require.Empty(t, f.deviceAuth.Authorized)
	})

	t.Run("no key", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.device.SetRegistrationID(testRegistrationID))
		err := f.service.LoginBiometric(context.Background())
		require.ErrorIs(t, err, autherr.ErrBiometricDataMissing)
	})

	t.Run("failure clears signing context", func(t *testing.T) {
		f := setupTestFixture(t)
		f.register(t, keystore.FingerprintTag, true)
		require.NoError(t, f.service.LoginBiometric(context.Background()))

		f.tokenRepo.AuthorizeErr = errors.New("token endpoint down")
		require.Error(t, f.service.LoginBiometric(context.Background()))

		_, _, err := f.service.SignWithBiometricSecurityContext(payload, keystore.Message)
		require.ErrorIs(t, err, autherr.ErrSigningNotAvailable)
	})
}

func TestRevokeTokens(t *testing.T) {
	t.Run("clears local state even when the server fails", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()
		f.register(t, keystore.FingerprintTag, true)
		require.NoError(t, f.service.LoginBiometric(ctx))
		f.tokenRepo.RevokeErr = errors.New("revocation endpoint unreachable")

		f.service.RevokeTokens(ctx)

		require.True(t, f.store.Current().IsEmpty())
		require.Equal(t, token.Record{}, f.store.Current())
		_, _, err := f.service.SignWithBiometricSecurityContext([]byte("x"), keystore.Message)
		require.ErrorIs(t, err, autherr.ErrSigningNotAvailable)

		revoked := f.tokenRepo.Revocations()
		require.Len(t, revoked, 2)
		require.Equal(t, authfake.Revocation{Token: "access-1", Hint: oauth2.AccessTokenHint, BasicAuth: (&clients.Client{ID: testClientID, Secret: testClientSecret}).BasicAuth()}, revoked[0])
		require.Equal(t, "refresh-1", revoked[1].Token)
		require.Equal(t, oauth2.RefreshTokenHint, revoked[1].Hint)
	})

	t.Run("only revokes what was held", func(t *testing.T) {
		f := setupTestFixture(t)
		f.tokenRepo.NoRefreshToken = true
		require.NoError(t, f.service.LoginPassword(context.Background(), testUsername, testPassword))

		f.service.RevokeTokens(context.Background())
		revoked := f.tokenRepo.Revocations()
		require.Len(t, revoked, 1)
		require.Equal(t, oauth2.AccessTokenHint, revoked[0].Hint)
	})

	t.Run("nothing held", func(t *testing.T) {
		f := setupTestFixture(t)
		f.service.RevokeTokens(context.Background())
		require.Empty(t, f.tokenRepo.Revocations())
	})
}

func TestGenerateToken(t *testing.T) {
	f := setupTestFixture(t)
	resp, err := f.service.GenerateToken(context.Background(), grant.Password{Username: testUsername, Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, "access-1", resp.AccessToken)
	require.True(t, f.store.Current().IsEmpty())
}

func TestTokenFor(t *testing.T) {
	f := setupTestFixture(t)
	details := `[{"type":"payment_initiation","amount":"100"}]`
	_, err := f.service.TokenFor(context.Background(), details, grant.ClientCredentials{})
	require.NoError(t, err)
	require.Equal(t, details, param(t, f.tokenRepo.LastGrant(), "authorization_details"))
}

func TestExtractAuthorizationDetails(t *testing.T) {
	f := setupTestFixture(t)

	body := []byte(`{"error":"insufficient_authorization","authorization_details":[{"type":"payment"}]}`)
	err := errors.Wrap(autherr.NewAPIError(http.StatusForbidden, body), "[Repo.Authorize]")
	require.Equal(t, `[{"type":"payment"}]`, f.service.ExtractAuthorizationDetails(err))

	require.Empty(t, f.service.ExtractAuthorizationDetails(autherr.NewAPIError(http.StatusBadRequest, []byte(`{"error":"invalid_grant"}`))))
	require.Empty(t, f.service.ExtractAuthorizationDetails(errors.New("plain")))
}

func TestGenerateGrant(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, keystore.FingerprintTag, true)

	data, err := f.service.GenerateGrant(context.Background(), auth.BiometricGrantInfo())
	require.NoError(t, err)
	require.NotNil(t, data.SecurityData)
	require.Equal(t, oauth2.BiometricMode, data.Grant.Mode)
	require.Empty(t, f.tokenRepo.Grants())

	f.register(t, keystore.DevicePinTag, false)
	data, err = f.service.GenerateGrant(context.Background(), auth.PinGrantInfo(testPin))
	require.NoError(t, err)
	require.Nil(t, data.SecurityData)
	require.Equal(t, oauth2.PinMode, data.Grant.Mode)
}

func TestAuthorizationURL(t *testing.T) {
	f := setupTestFixture(t)
	pkce, _, err := oauth2.GeneratePKCE()
	require.NoError(t, err)

	raw, err := f.service.AuthorizationURL(pkce, "")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "id.example.com", u.Host)
	require.Equal(t, "/connect/authorize", u.Path)

	q := u.Query()
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, testClientSecret, q.Get("client_secret"))
	require.Equal(t, testUserScope, q.Get("scope"))
	require.Equal(t, testRedirectURI, q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "query", q.Get("response_mode"))
	require.Equal(t, "login", q.Get("prompt"))
	require.Equal(t, pkce.Nonce, q.Get("nonce"))
	require.Equal(t, pkce.Challenge, q.Get("code_challenge"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))

	raw, err = f.service.AuthorizationURL(pkce, oauth2.PromptNone)
	require.NoError(t, err)
	require.Contains(t, raw, "prompt=none")
}

func TestAuthorizationURL_Errors(t *testing.T) {
	store, err := token.NewStore()
	require.NoError(t, err)
	f := setupTestFixture(t)
	repos := auth.Repos{Tokens: f.tokenRepo, DeviceAuth: f.deviceAuth, Device: f.device, Keys: f.keys}

	t.Run("malformed base", func(t *testing.T) {
		svc, err := auth.NewAuthorizationService(repos, &clients.Client{ID: "c", Urls: clients.Urls{Authorization: testRedirectURI}}, store,
			auth.WithEndpoints(auth.Endpoints{Authorization: "::not a url"}))
		require.NoError(t, err)
		_, err = svc.AuthorizationURL(oauth2.PKCE{}, "")
		var urlErr *autherr.URLError
		require.ErrorAs(t, err, &urlErr)
	})

	t.Run("missing redirect", func(t *testing.T) {
		svc, err := auth.NewAuthorizationService(repos, &clients.Client{ID: "c"}, store,
			auth.WithEndpoints(auth.Endpoints{Authorization: testAuthorizeURL, EndSession: testEndSessionURL}))
		require.NoError(t, err)
		_, err = svc.AuthorizationURL(oauth2.PKCE{}, "")
		var urlErr *autherr.URLError
		require.ErrorAs(t, err, &urlErr)
		_, err = svc.EndSessionURL()
		require.ErrorAs(t, err, &urlErr)
	})
}

func TestEndSessionURL(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.service.LoginPassword(context.Background(), testUsername, testPassword))

	raw, err := f.service.EndSessionURL()
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "id-1", u.Query().Get("id_token_hint"))
	require.Equal(t, testPostLogoutURI, u.Query().Get("post_logout_redirect_uri"))
}
