package auth

import (
	"github.com/jrsteele09/go-identity-client/grant"
	"github.com/jrsteele09/go-identity-client/keystore"
)

// SecurityData keeps a biometric key usable after the user authenticated
// once, so later signatures need no new prompt.
type SecurityData struct {
	key *keystore.KeyPair
}

// NewSecurityData wraps an already unlocked key.
func NewSecurityData(key *keystore.KeyPair) *SecurityData {
	if key == nil {
		return nil
	}
	return &SecurityData{key: key}
}

// DeviceGrantData is a device authentication grant ready to submit. Only the
// biometric path carries SecurityData.
type DeviceGrantData struct {
	Grant        grant.DeviceAuthentication
	SecurityData *SecurityData
}

// DeviceGrantInfo selects the quick login method for GenerateGrant.
type DeviceGrantInfo struct {
	biometric bool
	pin       string
}

func PinGrantInfo(pin string) DeviceGrantInfo { return DeviceGrantInfo{pin: pin} }
func BiometricGrantInfo() DeviceGrantInfo     { return DeviceGrantInfo{biometric: true} }
