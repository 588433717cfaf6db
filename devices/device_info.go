package devices

import (
	"time"

	"github.com/jrsteele09/go-identity-client/oauth2"
)

// DeviceInfo is a device registered to the signed in user.
type DeviceInfo struct {
	DeviceID                   string                  `json:"deviceId,omitempty"`
	Name                       string                  `json:"name,omitempty"`
	Platform                   oauth2.DevicePlatform   `json:"platform,omitempty"`
	ClientType                 oauth2.DeviceClientType `json:"clientType,omitempty"`
	Model                      string                  `json:"model,omitempty"`
	OSVersion                  string                  `json:"osVersion,omitempty"`
	Data                       string                  `json:"data,omitempty"`
	Tags                       []string                `json:"tags,omitempty"`
	IsPushNotificationsEnabled bool                    `json:"isPushNotificationsEnabled,omitempty"`
	SupportsPinLogin           bool                    `json:"supportsPinLogin,omitempty"`
	SupportsFingerprintLogin   bool                    `json:"supportsFingerprintLogin,omitempty"`
	IsTrusted                  bool                    `json:"isTrusted,omitempty"`
	CanActivateDeviceTrust     bool                    `json:"canActivateDeviceTrust,omitempty"`
	RequiresPassword           bool                    `json:"requiresPassword,omitempty"`
	TrustActivationDate        *time.Time              `json:"trustActivationDate,omitempty"`
	LastSignInDate             *time.Time              `json:"lastSignInDate,omitempty"`
	DateCreated                *time.Time              `json:"dateCreated,omitempty"`
}

// ResultSet is a page of items.
type ResultSet[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

// CreateDeviceRequest registers this install as a device.
type CreateDeviceRequest struct {
	DeviceID   string                  `json:"deviceId"`
	PnsHandle  string                  `json:"pnsHandle,omitempty"`
	Name       string                  `json:"name"`
	Platform   oauth2.DevicePlatform   `json:"platform"`
	ClientType oauth2.DeviceClientType `json:"clientType,omitempty"`
	Tags       []string                `json:"tags,omitempty"`
	Model      string                  `json:"model,omitempty"`
	OSVersion  string                  `json:"osVersion,omitempty"`
	Data       string                  `json:"data,omitempty"`
}

// UpdateDeviceRequest replaces the mutable fields of a device.
type UpdateDeviceRequest struct {
	Name                       string   `json:"name"`
	IsPushNotificationsEnabled *bool    `json:"isPushNotificationsEnabled,omitempty"`
	Tags                       []string `json:"tags,omitempty"`
	PnsHandle                  string   `json:"pnsHandle,omitempty"`
	Model                      string   `json:"model,omitempty"`
	OSVersion                  string   `json:"osVersion,omitempty"`
	Data                       string   `json:"data,omitempty"`
}

// QuickLoginStatus tracks which quick login methods are registered on this device.
type QuickLoginStatus struct {
	HasDevicePin   bool
	HasFingerprint bool
}

// HasQuickLogin reports whether any method is registered.
func (q QuickLoginStatus) HasQuickLogin() bool {
	return q.HasDevicePin || q.HasFingerprint
}
