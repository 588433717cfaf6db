// Package thisdevice owns the identifiers that tie this install to the identity server.
package thisdevice

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-identity-client/internal/cryptorand"
	"github.com/jrsteele09/go-identity-client/storage"
	"github.com/pkg/errors"
)

const (
	deviceIDKey       = "device_id_key"
	registrationIDKey = "registration_id_key"
)

// IDs identify this install. Registration is empty until a device trust
// registration completes.
type IDs struct {
	Device       string
	Registration string
}

// Repo is the device identity store consumed by the authorization and devices services.
type Repo interface {
	IDs() (IDs, error)
	SetRegistrationID(id string) error
	ResetIDs() error
	Info(ctx context.Context) (Info, error)
}

// Repository keeps the device id in plain storage and the registration id in secure storage.
type Repository struct {
	plain      storage.ValueStorage
	secure     storage.ValueStorage
	info       InfoProvider
	persistent bool
	ephemeral  string // device id used when persistence is off
	lock       sync.Mutex
}

var _ Repo = (*Repository)(nil)

// RepositoryOption defines a function type to modify the Repository instance.
type RepositoryOption func(*Repository)

// WithPersistentDeviceID controls whether the device id survives restarts.
func WithPersistentDeviceID(persistent bool) RepositoryOption {
	return func(r *Repository) {
		r.persistent = persistent
	}
}

func NewRepository(plain, secure storage.ValueStorage, info InfoProvider, options ...RepositoryOption) (*Repository, error) {
	if plain == nil {
		return nil, errors.New("[NewRepository] plain storage is required")
	}
	if secure == nil {
		return nil, errors.New("[NewRepository] secure storage is required")
	}
	if info == nil {
		info = HostInfoProvider{}
	}
	r := &Repository{plain: plain, secure: secure, info: info, persistent: true}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// IDs returns the device ids, creating the device id on first use.
func (r *Repository) IDs() (IDs, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	device, err := r.deviceID()
	if err != nil {
		return IDs{}, err
	}
	registration, err := storage.ReadOptional(r.secure, registrationIDKey)
	if err != nil {
		return IDs{}, errors.Wrap(err, "[Repository.IDs] registration id")
	}
	return IDs{Device: device, Registration: registration}, nil
}

func (r *Repository) deviceID() (string, error) {
	if !r.persistent {
		if r.ephemeral == "" {
			id, err := cryptorand.UniqueID()
			if err != nil {
				return "", err
			}
			r.ephemeral = id
		}
		return r.ephemeral, nil
	}

	id, err := storage.ReadOptional(r.plain, deviceIDKey)
	if err != nil {
		return "", errors.Wrap(err, "[Repository.deviceID] read")
	}
	if id != "" {
		return id, nil
	}
	if id, err = cryptorand.UniqueID(); err != nil {
		return "", err
	}
	if err := r.plain.StoreValue(deviceIDKey, id); err != nil {
		return "", errors.Wrap(err, "[Repository.deviceID] store")
	}
	return id, nil
}

// SetRegistrationID stores id; an empty id clears the registration.
func (r *Repository) SetRegistrationID(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if id == "" {
		return r.secure.ClearValue(registrationIDKey)
	}
	return r.secure.StoreValue(registrationIDKey, id)
}

// ResetIDs forgets both ids. The next IDs call generates a new device id.
func (r *Repository) ResetIDs() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.ephemeral = ""
	if err := r.plain.ClearValue(deviceIDKey); err != nil {
		return errors.Wrap(err, "[Repository.ResetIDs] device id")
	}
	if err := r.secure.ClearValue(registrationIDKey); err != nil {
		return errors.Wrap(err, "[Repository.ResetIDs] registration id")
	}
	return nil
}

func (r *Repository) Info(ctx context.Context) (Info, error) {
	return r.info.Info(ctx)
}
