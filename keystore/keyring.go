package keystore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"
)

var _ KeyStore = (*Keyring)(nil)

// Keyring persists key pairs in the operating system credential store as
// PKCS#1 PEM. Gated keys are released only after the gate passes.
type Keyring struct {
	service string
	opts    options
	lock    sync.Mutex
}

type storedKey struct {
	KeyID         string `json:"kid"`
	Locked        bool   `json:"locked"`
	PrivateKeyPEM string `json:"privateKey"`
}

func NewKeyring(service string, opts ...Option) *Keyring {
	return &Keyring{service: service, opts: newOptions(opts)}
}

func keyringUser(tag Tag) string {
	return "keypair." + string(tag)
}

func (k *Keyring) Create(_ context.Context, tag Tag, gated bool) (*KeyPair, error) {
	k.lock.Lock()
	defer k.lock.Unlock()
	if _, err := k.delete(tag); err != nil {
		return nil, err
	}

	kp, err := generateKeyPair(uuid.NewString(), tag, gated, k.opts.bits)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(storedKey{KeyID: kp.KeyID, Locked: gated, PrivateKeyPEM: exportPrivateKeyPEM(kp)})
	if err != nil {
		return nil, errors.Wrap(err, "[Keyring.Create] marshal")
	}
	if err := keyring.Set(k.service, keyringUser(tag), string(data)); err != nil {
		return nil, errors.Wrapf(err, "[Keyring.Create] store %s", tag)
	}
	return kp, nil
}

func (k *Keyring) Load(ctx context.Context, tag Tag, gated bool) (*KeyPair, error) {
	k.lock.Lock()
	data, err := keyring.Get(k.service, keyringUser(tag))
	k.lock.Unlock()
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[Keyring.Load] %s", tag)
	}

	var sk storedKey
	if err := json.Unmarshal([]byte(data), &sk); err != nil {
		return nil, errors.Wrapf(err, "[Keyring.Load] decode %s", tag)
	}
	if sk.Locked != gated {
		return nil, ErrKeyNotFound
	}
	if gated {
		if err := k.opts.gate(ctx, tag); err != nil {
			return nil, err
		}
	}
	privateKey, err := loadRSAPrivateKeyFromPEM(sk.PrivateKeyPEM)
	if err != nil {
		return nil, errors.Wrapf(err, "[Keyring.Load] %s", tag)
	}
	return &KeyPair{KeyID: sk.KeyID, Tag: tag, Locked: sk.Locked, signer: privateKey}, nil
}

func (k *Keyring) Delete(_ context.Context, tag Tag, _ bool) (bool, error) {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.delete(tag)
}

func (k *Keyring) delete(tag Tag) (bool, error) {
	err := keyring.Delete(k.service, keyringUser(tag))
	if errors.Is(err, keyring.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "[Keyring.Delete] %s", tag)
	}
	return true, nil
}
