package config

import "github.com/jrsteele09/go-identity-client/keystore"

type SecurityConfig interface {
	GetKeyBits() int
	GetPersistentDeviceID() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetKeyBits is the RSA size for quick login keys, never below keystore.MinKeyBits.
func (Security) GetKeyBits() int {
	return max(GetInt("IDENTITY_KEY_BITS", keystore.MinKeyBits), keystore.MinKeyBits)
}

// GetPersistentDeviceID controls whether the device id survives restarts.
func (Security) GetPersistentDeviceID() bool {
	return GetBool("IDENTITY_PERSISTENT_DEVICE_ID", true)
}
