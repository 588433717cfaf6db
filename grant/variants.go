package grant

import "github.com/jrsteele09/go-identity-client/oauth2"

// Password is the resource owner password grant.
type Password struct {
	Username string
	Password string
}

func (Password) GrantType() oauth2.GrantType { return oauth2.PasswordGrant }
func (Password) IsUserGrant() bool           { return true }

func (g Password) Params() Params {
	return params("grant_type", string(g.GrantType()), "username", g.Username, "password", g.Password)
}

// RefreshToken redeems a refresh token.
type RefreshToken struct {
	Token string
}

func (RefreshToken) GrantType() oauth2.GrantType { return oauth2.RefreshTokenGrant }
func (RefreshToken) IsUserGrant() bool           { return true }

func (g RefreshToken) Params() Params {
	return params("grant_type", string(g.GrantType()), "refresh_token", g.Token)
}

// ClientCredentials authenticates the application.
type ClientCredentials struct{}

func (ClientCredentials) GrantType() oauth2.GrantType { return oauth2.ClientCredentialsGrant }
func (ClientCredentials) IsUserGrant() bool           { return false }

func (g ClientCredentials) Params() Params {
	return params("grant_type", string(g.GrantType()))
}

// AuthorizationCode redeems a code from the browser flow.
type AuthorizationCode struct {
	Code         string
	CodeVerifier string
	RedirectURI  string
}

func (AuthorizationCode) GrantType() oauth2.GrantType { return oauth2.AuthorizationCodeGrant }
func (AuthorizationCode) IsUserGrant() bool           { return true }

func (g AuthorizationCode) Params() Params {
	return params(
		"grant_type", string(g.GrantType()),
		"code", g.Code,
		"code_verifier", g.CodeVerifier,
		"redirect_uri", g.RedirectURI,
	)
}

// OtpAuthenticated elevates an existing access token with a one time password.
// Without Otp the server only sends a password over Channel.
type OtpAuthenticated struct {
	Token   string
	Otp     string
	Channel oauth2.TotpDeliveryChannel
}

func (OtpAuthenticated) GrantType() oauth2.GrantType { return oauth2.OtpAuthenticateGrant }
func (OtpAuthenticated) IsUserGrant() bool           { return true }

func (g OtpAuthenticated) Params() Params {
	return params(
		"grant_type", string(g.GrantType()),
		"otp", g.Otp,
		"token", g.Token,
		"channel", string(g.Channel),
	)
}

// DeviceAuthentication logs in with a key registered through device trust.
type DeviceAuthentication struct {
	Mode          oauth2.TrustDeviceMode
	Pin           string
	Code          string
	CodeSignature string
	CodeVerifier  string
	PublicKey     string
}

// DevicePin builds a PIN login from the prepared PIN hash.
func DevicePin(pinHash string) DeviceAuthentication {
	return DeviceAuthentication{Mode: oauth2.PinMode, Pin: pinHash}
}

// DeviceBiometric builds a biometric login from a signed server challenge.
func DeviceBiometric(challenge, codeSignature, codeVerifier, publicKeyPEM string) DeviceAuthentication {
	return DeviceAuthentication{
		Mode:          oauth2.BiometricMode,
		Code:          challenge,
		CodeSignature: codeSignature,
		CodeVerifier:  codeVerifier,
		PublicKey:     publicKeyPEM,
	}
}

func (DeviceAuthentication) GrantType() oauth2.GrantType { return oauth2.DeviceAuthenticationGrant }
func (DeviceAuthentication) IsUserGrant() bool           { return true }

func (g DeviceAuthentication) Params() Params {
	return params(
		"grant_type", string(g.GrantType()),
		"mode", string(g.Mode),
		"pin", g.Pin,
		"code", g.Code,
		"code_signature", g.CodeSignature,
		"code_verifier", g.CodeVerifier,
		"public_key", g.PublicKey,
	)
}
