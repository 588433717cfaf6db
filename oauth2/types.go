package oauth2

// ResponseType is the response_type requested from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType requests an authorization code.
	// Used in: Authorization Code Flow with PKCE (the only browser flow a native client should use)
	// Example: /connect/authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"

	// CodeIDTokenResponseType requests a code and an id_token in the same redirect (hybrid flow).
	CodeIDTokenResponseType ResponseType = "code id_token"
)

// ResponseModeType denotes how the authorization response parameters are returned to the client.
type ResponseModeType string

const (
	// QueryResponseMode returns parameters in the redirect URL query string.
	// Example: myapp://callback?code=ABC123&state=xyz
	QueryResponseMode ResponseModeType = "query"

	// FragmentResponseMode returns parameters in the URL fragment (after #).
	FragmentResponseMode ResponseModeType = "fragment"

	// FormPostResponseMode returns parameters via an auto-submitting HTML form.
	FormPostResponseMode ResponseModeType = "form_post"
)

// CodeMethodType represents the PKCE challenge method sent with code_challenge_method.
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates code_challenge = BASE64URL(SHA256(code_verifier)).
	CodeMethodTypeS256 CodeMethodType = "S256"

	// CodeMethodTypeNone sends the verifier as the challenge. Kept for completeness; never generated here.
	CodeMethodTypeNone CodeMethodType = "plain"
)

// PromptType is the OIDC prompt parameter for the authorization endpoint.
type PromptType string

const (
	PromptLogin   PromptType = "login"
	PromptNone    PromptType = "none"
	PromptConsent PromptType = "consent"
)

// GrantType represents the grant_type sent to the token endpoint.
// Determines which credentials accompany the request.
type GrantType string

const (
	// PasswordGrant exchanges a username and password for tokens.
	// Token request includes: username, password, client_id, client_secret, scope
	PasswordGrant GrantType = "password"

	// RefreshTokenGrant exchanges a stored refresh token for a new token set.
	// Token request includes: refresh_token, client_id, client_secret
	RefreshTokenGrant GrantType = "refresh_token"

	// ClientCredentialsGrant authenticates the application itself (no user context).
	// Token request includes: client_id, client_secret, scope (the app scope)
	ClientCredentialsGrant GrantType = "client_credentials"

	// AuthorizationCodeGrant exchanges a code obtained from the browser flow.
	// Token request includes: code, redirect_uri, code_verifier
	AuthorizationCodeGrant GrantType = "authorization_code"

	// OtpAuthenticateGrant upgrades the current session with a one time password.
	// Token request includes: token (the current access token), otp, channel
	OtpAuthenticateGrant GrantType = "otp_authenticate"

	// DeviceAuthenticationGrant logs in with a key pair registered through device trust.
	// Token request includes: mode, device_id, registration_id and either pin or
	// code + code_signature + code_verifier + public_key.
	DeviceAuthenticationGrant GrantType = "device_authentication"
)

// TrustDeviceMode is the quick login credential kind registered for a device.
// The wire values are fixed by the identity server.
type TrustDeviceMode string

const (
	BiometricMode TrustDeviceMode = "fingerprint"
	PinMode       TrustDeviceMode = "pin"
)

// TokenTypeHint tells the revocation endpoint which kind of token is being revoked.
type TokenTypeHint string

const (
	AccessTokenHint  TokenTypeHint = "access_token"
	RefreshTokenHint TokenTypeHint = "refresh_token"
)

// DevicePlatform identifies the operating system of a registered device.
type DevicePlatform string

const (
	PlatformNone    DevicePlatform = "None"
	PlatformAndroid DevicePlatform = "Android"
	PlatformIOS     DevicePlatform = "iOS"
	PlatformWindows DevicePlatform = "Windows"
	PlatformMacOS   DevicePlatform = "MacOS"
	PlatformLinux   DevicePlatform = "Linux"
)

// TotpDeliveryChannel selects how the server sends the one time password
// that accompanies a device trust registration.
type TotpDeliveryChannel string

const (
	ChannelSms              TotpDeliveryChannel = "Sms"
	ChannelEmail            TotpDeliveryChannel = "Email"
	ChannelTelephone        TotpDeliveryChannel = "Telephone"
	ChannelViber            TotpDeliveryChannel = "Viber"
	ChannelEToken           TotpDeliveryChannel = "EToken"
	ChannelPushNotification TotpDeliveryChannel = "PushNotification"
	ChannelNone             TotpDeliveryChannel = "None"
)

// DeviceClientType distinguishes browser sessions from native app installs.
type DeviceClientType string

const (
	BrowserClient DeviceClientType = "Browser"
	NativeClient  DeviceClientType = "Native"
)
