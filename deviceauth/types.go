// Package deviceauth implements device trust registration: a PIN or
// biometric key pair is created on the device, bound to the account through
// a signed server challenge, and later used in place of the password.
package deviceauth

import (
	"net/url"

	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/jrsteele09/go-identity-client/clients"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/jrsteele09/go-identity-client/thisdevice"
)

// ChallengeResponse is returned by the initialize and authorize endpoints.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}

// RegistrationResult is returned by the complete endpoint.
type RegistrationResult struct {
	RegistrationID string `json:"registrationId"`
}

// AuthorizationRequest starts a registration (initialize) or a biometric login (authorize).
type AuthorizationRequest struct {
	CodeChallenge  string
	DeviceID       string
	Mode           oauth2.TrustDeviceMode
	ClientID       string
	Scope          string
	RegistrationID string
	Channel        oauth2.TotpDeliveryChannel
}

// NewAuthorizationRequest builds an initialize request.
func NewAuthorizationRequest(codeChallenge string, mode oauth2.TrustDeviceMode, ids thisdevice.IDs, client *clients.Client, channel oauth2.TotpDeliveryChannel) AuthorizationRequest {
	return AuthorizationRequest{
		CodeChallenge:  codeChallenge,
		DeviceID:       ids.Device,
		Mode:           mode,
		ClientID:       client.ID,
		Scope:          client.UserScope,
		RegistrationID: ids.Registration,
		Channel:        channel,
	}
}

// NewAuthorizeRequest builds an authorize request. It needs a completed registration.
func NewAuthorizeRequest(codeChallenge string, mode oauth2.TrustDeviceMode, ids thisdevice.IDs, client *clients.Client) (AuthorizationRequest, error) {
	if ids.Registration == "" {
		return AuthorizationRequest{}, autherr.ErrRegistrationIDMissing
	}
	return NewAuthorizationRequest(codeChallenge, mode, ids, client, ""), nil
}

// Form returns the form body. Empty optional fields are omitted.
func (r AuthorizationRequest) Form() url.Values {
	return form(
		"code_challenge", r.CodeChallenge,
		"device_id", r.DeviceID,
		"mode", string(r.Mode),
		"client_id", r.ClientID,
		"scope", r.Scope,
		"registration_id", r.RegistrationID,
		"channel", string(r.Channel),
	)
}

// RegistrationRequest completes a registration.
type RegistrationRequest struct {
	Code           string
	CodeVerifier   string
	CodeSignature  string
	Mode           oauth2.TrustDeviceMode
	DeviceID       string
	DeviceName     string
	DevicePlatform oauth2.DevicePlatform
	Otp            string
	PublicKey      string // biometric only
	Pin            string // pin only, the prepared hash
}

// Form returns the form body. Empty optional fields are omitted.
func (r RegistrationRequest) Form() url.Values {
	return form(
		"code", r.Code,
		"code_verifier", r.CodeVerifier,
		"code_signature", r.CodeSignature,
		"mode", string(r.Mode),
		"device_id", r.DeviceID,
		"device_name", r.DeviceName,
		"device_platform", string(r.DevicePlatform),
		"otp", r.Otp,
		"public_key", r.PublicKey,
		"pin", r.Pin,
	)
}

func form(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			v.Set(kv[i], kv[i+1])
		}
	}
	return v
}

// OtpResult is the caller's answer to the one time password step.
type OtpResult struct {
	value   string
	aborted bool
}

// SubmitOtp continues the registration with value.
func SubmitOtp(value string) OtpResult {
	return OtpResult{value: value}
}

// AbortOtp ends the registration without contacting the server.
func AbortOtp() OtpResult {
	return OtpResult{aborted: true}
}

func (o OtpResult) Aborted() bool { return o.aborted }
func (o OtpResult) Value() string { return o.value }
