package auth

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/jrsteele09/go-identity-client/clients"
	"github.com/jrsteele09/go-identity-client/deviceauth"
	"github.com/jrsteele09/go-identity-client/grant"
	"github.com/jrsteele09/go-identity-client/internal/cryptorand"
	"github.com/jrsteele09/go-identity-client/keystore"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/jrsteele09/go-identity-client/thisdevice"
	"github.com/jrsteele09/go-identity-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Tokens     TokenRepo         // Token and revocation endpoints
	DeviceAuth deviceauth.Repo   // Device trust endpoints, used for the biometric challenge
	Device     thisdevice.Repo   // Device and registration ids
	Keys       keystore.KeyStore // Quick login key pairs
}

// Endpoints are the browser facing URLs the service builds links for.
type Endpoints struct {
	Authorization string
	EndSession    string
}

// AuthorizationService obtains, refreshes and revokes the session's tokens.
//
// All state changes (token store writes and the biometric security context)
// happen while holding lock, so a refresh and a revoke can never interleave.
type AuthorizationService struct {
	repos     Repos
	client    *clients.Client
	tokens    *token.Store
	endpoints Endpoints
	security  *SecurityData
	lock      sync.Mutex
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithEndpoints sets the authorization and end session URLs.
func WithEndpoints(endpoints Endpoints) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.endpoints = endpoints
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(
	repos Repos,
	client *clients.Client,
	tokens *token.Store,
	options ...AuthorizationServiceOption,
) (*AuthorizationService, error) {
	if repos.Tokens == nil {
		return nil, errors.New("[NewAuthorizationService] Tokens repo is required")
	}
	if repos.DeviceAuth == nil {
		return nil, errors.New("[NewAuthorizationService] DeviceAuth repo is required")
	}
	if repos.Device == nil {
		return nil, errors.New("[NewAuthorizationService] Device repo is required")
	}
	if repos.Keys == nil {
		return nil, errors.New("[NewAuthorizationService] Keys store is required")
	}
	if client == nil {
		return nil, errors.New("[NewAuthorizationService] client is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewAuthorizationService] token store is required")
	}

	as := &AuthorizationService{
		repos:  repos,
		client: client,
		tokens: tokens,
	}
	for _, opt := range options {
		opt(as)
	}
	return as, nil
}

// Tokens returns the store the service writes to.
func (as *AuthorizationService) Tokens() *token.Store {
	return as.tokens
}

// AppendDefaultParameters decorates g with the client identity and device ids.
func (as *AuthorizationService) AppendDefaultParameters(g grant.Grant) (grant.Grant, error) {
	ids, err := as.repos.Device.IDs()
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.AppendDefaultParameters] device ids")
	}
	return grant.WithDeviceIDs(grant.WithClient(g, as.client), ids), nil
}

// GenerateToken submits g without touching the token store.
func (as *AuthorizationService) GenerateToken(ctx context.Context, g grant.Grant) (oauth2.TokenResponse, error) {
	full, err := as.AppendDefaultParameters(g)
	if err != nil {
		return oauth2.TokenResponse{}, err
	}
	resp, err := as.repos.Tokens.Authorize(ctx, full)
	if err != nil {
		return oauth2.TokenResponse{}, errors.Wrapf(err, "[AuthorizationService.GenerateToken] %s", g.GrantType())
	}
	return resp, nil
}

// TokenFor requests a token for g scoped by an RFC 9396 authorization_details payload.
func (as *AuthorizationService) TokenFor(ctx context.Context, authorizationDetails string, g grant.Grant) (oauth2.TokenResponse, error) {
	return as.GenerateToken(ctx, grant.WithAuthorizationDetails(g, authorizationDetails))
}

// ExtractAuthorizationDetails returns the authorization_details the server
// demanded in an insufficient_authorization error, or "" if err has none.
func (as *AuthorizationService) ExtractAuthorizationDetails(err error) string {
	var apiErr *autherr.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Body) == 0 {
		return ""
	}
	var body struct {
		AuthorizationDetails json.RawMessage `json:"authorization_details"`
	}
	if json.Unmarshal(apiErr.Body, &body) != nil || len(body.AuthorizationDetails) == 0 || string(body.AuthorizationDetails) == "null" {
		return ""
	}
	return string(body.AuthorizationDetails)
}

// Login submits g and replaces the stored tokens with the response.
func (as *AuthorizationService) Login(ctx context.Context, g grant.Grant) error {
	as.lock.Lock()
	defer as.lock.Unlock()
	return as.login(ctx, g)
}

func (as *AuthorizationService) login(ctx context.Context, g grant.Grant) error {
	resp, err := as.GenerateToken(ctx, g)
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.Login]")
	}
	if err := as.tokens.Parse(resp); err != nil {
		return errors.Wrap(err, "[AuthorizationService.Login] store tokens")
	}
	return nil
}

// LoginPassword authenticates with the resource owner password grant.
func (as *AuthorizationService) LoginPassword(ctx context.Context, username, password string) error {
	return as.Login(ctx, grant.Password{Username: username, Password: password})
}

// LoginAuthorizationCode redeems a code returned to the redirect URI.
func (as *AuthorizationService) LoginAuthorizationCode(ctx context.Context, code, codeVerifier string) error {
	return as.Login(ctx, grant.AuthorizationCode{Code: code, CodeVerifier: codeVerifier, RedirectURI: as.client.Urls.Authorization})
}

// LoginOtp elevates the current session. Call with an empty otp to have one
// sent over channel first.
func (as *AuthorizationService) LoginOtp(ctx context.Context, otp string, channel oauth2.TotpDeliveryChannel) error {
	as.lock.Lock()
	defer as.lock.Unlock()
	return as.login(ctx, grant.OtpAuthenticated{Token: as.tokens.Current().AccessToken, Otp: otp, Channel: channel})
}

// AuthorizeClient logs the application itself in with client credentials.
func (as *AuthorizationService) AuthorizeClient(ctx context.Context) error {
	return as.Login(ctx, grant.ClientCredentials{})
}

// GenerateGrant prepares a device authentication grant without submitting it.
func (as *AuthorizationService) GenerateGrant(ctx context.Context, info DeviceGrantInfo) (*DeviceGrantData, error) {
	ids, err := as.repos.Device.IDs()
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.GenerateGrant] device ids")
	}
	if ids.Registration == "" {
		return nil, autherr.ErrRegistrationIDMissing
	}
	if info.biometric {
		return as.biometricGrant(ctx, ids)
	}
	return as.pinGrant(ctx, ids, info.pin)
}

func (as *AuthorizationService) pinGrant(ctx context.Context, ids thisdevice.IDs, pin string) (*DeviceGrantData, error) {
	key, err := as.repos.Keys.Load(ctx, keystore.DevicePinTag, false)
	if err != nil {
		return nil, keyLoadError(err)
	}
	hash, err := keystore.PreparePin(pin, ids.Device, key)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.pinGrant]")
	}
	return &DeviceGrantData{Grant: grant.DevicePin(hash)}, nil
}

func (as *AuthorizationService) biometricGrant(ctx context.Context, ids thisdevice.IDs) (*DeviceGrantData, error) {
	key, err := as.repos.Keys.Load(ctx, keystore.FingerprintTag, true)
	if err != nil {
		return nil, keyLoadError(err)
	}

	verifier, err := cryptorand.UniqueID()
	if err != nil {
		return nil, err
	}
	req, err := deviceauth.NewAuthorizeRequest(cryptorand.S256(verifier), oauth2.BiometricMode, ids, as.client)
	if err != nil {
		return nil, err
	}
	challenge, err := as.repos.DeviceAuth.Authorize(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.biometricGrant] authorize")
	}
	signature, err := keystore.SignString(key, challenge.Challenge)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.biometricGrant] sign challenge")
	}

	return &DeviceGrantData{
		Grant:        grant.DeviceBiometric(challenge.Challenge, signature, verifier, key.PublicKeyPEM()),
		SecurityData: NewSecurityData(key),
	}, nil
}

// LoginPin logs in with the registered device PIN.
func (as *AuthorizationService) LoginPin(ctx context.Context, pin string) error {
	data, err := as.GenerateGrant(ctx, PinGrantInfo(pin))
	if err != nil {
		return err
	}
	return as.Login(ctx, data.Grant)
}

// LoginBiometric logs in with the registered biometric key and keeps the
// unlocked key for SignWithBiometricSecurityContext. Any failure clears it.
func (as *AuthorizationService) LoginBiometric(ctx context.Context) error {
	as.lock.Lock()
	defer as.lock.Unlock()

	data, err := as.GenerateGrant(ctx, BiometricGrantInfo())
	if err == nil {
		as.security = data.SecurityData
		err = as.login(ctx, data.Grant)
	}
	if err != nil {
		as.security = nil
		return err
	}
	return nil
}

// RefreshTokens redeems the stored refresh token.
func (as *AuthorizationService) RefreshTokens(ctx context.Context) error {
	as.lock.Lock()
	defer as.lock.Unlock()

	refreshToken := as.tokens.Current().RefreshToken
	if refreshToken == "" {
		return autherr.ErrRefreshTokenMissing
	}
	return as.login(ctx, grant.RefreshToken{Token: refreshToken})
}

// RevokeTokens logs out locally, then asks the server to revoke what was held.
// Server failures are logged and never reported; the session is over either way.
func (as *AuthorizationService) RevokeTokens(ctx context.Context) {
	as.lock.Lock()
	defer as.lock.Unlock()

	record := as.tokens.Current()
	as.security = nil
	if err := as.tokens.Clear(); err != nil {
		log.Err(err).Msg("Failed to clear persisted tokens")
	}

	revoke := func(value string, hint oauth2.TokenTypeHint) {
		if value == "" {
			return
		}
		if err := as.repos.Tokens.Revoke(ctx, value, hint, as.client.BasicAuth()); err != nil {
			log.Err(err).Str("token_type", string(hint)).Msg("Failed to revoke token")
		}
	}
	revoke(record.AccessToken, oauth2.AccessTokenHint)
	revoke(record.RefreshToken, oauth2.RefreshTokenHint)
}

// UpdateSecurityData installs data as the signing context; nil clears it.
func (as *AuthorizationService) UpdateSecurityData(data *SecurityData) {
	as.lock.Lock()
	defer as.lock.Unlock()
	as.security = data
}

// SignWithBiometricSecurityContext signs payload with the key unlocked by the
// last biometric login and returns the signature with the PKCS#1 DER public key.
func (as *AuthorizationService) SignWithBiometricSecurityContext(payload []byte, dataType keystore.SignatureDataType) ([]byte, []byte, error) {
	as.lock.Lock()
	defer as.lock.Unlock()

	if as.security == nil {
		return nil, nil, autherr.ErrSigningNotAvailable
	}
	signature, err := as.security.key.Sign(payload, dataType)
	if err != nil {
		return nil, nil, errors.Wrapf(autherr.ErrSigningFailed, "%v", err)
	}
	return signature, as.security.key.PublicKeyDER(), nil
}
