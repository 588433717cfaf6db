package storage

import (
	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"
)

var _ ValueStorage = (*Keyring)(nil)

// Keyring stores values in the operating system credential store
// (Keychain, Secret Service, Windows Credential Manager). Used for secrets
// such as the device registration id.
type Keyring struct {
	service string
}

func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

func (k *Keyring) ReadValue(key string) (string, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "[Keyring.ReadValue] %s", key)
	}
	return v, nil
}

func (k *Keyring) StoreValue(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return errors.Wrapf(err, "[Keyring.StoreValue] %s", key)
	}
	return nil
}

func (k *Keyring) ClearValue(key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return errors.Wrapf(err, "[Keyring.ClearValue] %s", key)
	}
	return nil
}
