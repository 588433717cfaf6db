package auth

import (
	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/jrsteele09/go-identity-client/keystore"
	"github.com/pkg/errors"
)

// keyLoadError maps key store failures onto the biometric taxonomy.
func keyLoadError(err error) error {
	if errors.Is(err, keystore.ErrUserCanceled) {
		return autherr.ErrBiometricUserCanceled
	}
	return errors.Wrapf(autherr.ErrBiometricDataMissing, "%v", err)
}
