// Package autherr defines the failures callers of the identity client can branch on.
package autherr

import (
	"errors"
	"fmt"
)

// Local precondition and capability errors. These are raised before any network call.
var (
	// Authorization errors
	ErrRefreshTokenMissing   = errors.New("authorization: refresh token missing")
	ErrRegistrationIDMissing = errors.New("authorization: registration id missing")

	// Biometric errors
	ErrBiometricUserCanceled = errors.New("biometric: user canceled")
	ErrBiometricDataMissing  = errors.New("biometric: data missing")

	// Device errors
	ErrDeviceLimitReached = errors.New("device: trusted device limit reached")

	// Signing errors
	ErrSigningNotAvailable = errors.New("signing: security context not available")
	ErrSigningFailed       = errors.New("signing: failed")

	// Registration errors
	ErrRegistrationConsumed = errors.New("registration: already completed")
)

// URLError reports a configured endpoint that cannot be parsed or is missing.
type URLError struct {
	URL string
	Err error
}

func (e *URLError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("url: malformed %q", e.URL)
	}
	return fmt.Sprintf("url: malformed %q: %v", e.URL, e.Err)
}

func (e *URLError) Unwrap() error { return e.Err }

// MalformedURL builds a *URLError.
func MalformedURL(rawURL string, err error) error {
	return &URLError{URL: rawURL, Err: err}
}

// Domain names a sub capability of the identity client.
type Domain string

const (
	DomainAuthorization    Domain = "authorization"
	DomainAccount          Domain = "account"
	DomainDevices          Domain = "devices"
	DomainUserInformation  Domain = "userInformation"
	DomainUserRegistration Domain = "userRegistration"
)

// DomainUnavailableError signals that a sub capability could not be constructed.
// It is a dependency failure, not an authentication failure.
type DomainUnavailableError struct {
	Domain Domain
	Err    error
}

func (e *DomainUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("domain %s unavailable", e.Domain)
	}
	return fmt.Sprintf("domain %s unavailable: %v", e.Domain, e.Err)
}

func (e *DomainUnavailableError) Unwrap() error { return e.Err }

// Unavailable builds a *DomainUnavailableError.
func Unavailable(domain Domain, err error) error {
	return &DomainUnavailableError{Domain: domain, Err: err}
}

// IsDomainUnavailable reports whether err is a DomainUnavailableError for domain.
func IsDomainUnavailable(err error, domain Domain) bool {
	var de *DomainUnavailableError
	return errors.As(err, &de) && de.Domain == domain
}
