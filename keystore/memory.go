package keystore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Gate authorizes use of a gated key, e.g. by prompting for a fingerprint.
// Returning ErrUserCanceled maps to a user cancellation; any other error is a failure.
type Gate func(ctx context.Context, tag Tag) error

// AllowAll is a Gate that always passes.
func AllowAll(context.Context, Tag) error { return nil }

// Option configures the key stores in this package.
type Option func(*options)

type options struct {
	gate Gate
	bits int
}

// WithGate sets the authentication gate applied to gated keys.
func WithGate(gate Gate) Option {
	return func(o *options) {
		o.gate = gate
	}
}

// WithKeyBits sets the RSA modulus size for new keys.
func WithKeyBits(bits int) Option {
	return func(o *options) {
		o.bits = bits
	}
}

func newOptions(opts []Option) options {
	o := options{gate: AllowAll, bits: MinKeyBits}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var _ KeyStore = (*Memory)(nil)

// Memory keeps keys for the life of the process.
type Memory struct {
	opts options
	keys map[Tag]*KeyPair
	lock sync.RWMutex
}

func NewMemory(opts ...Option) *Memory {
	return &Memory{opts: newOptions(opts), keys: make(map[Tag]*KeyPair)}
}

func (m *Memory) Create(_ context.Context, tag Tag, gated bool) (*KeyPair, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.keys, tag)

	kp, err := generateKeyPair(uuid.NewString(), tag, gated, m.opts.bits)
	if err != nil {
		return nil, err
	}
	m.keys[tag] = kp
	return kp, nil
}

func (m *Memory) Load(ctx context.Context, tag Tag, gated bool) (*KeyPair, error) {
	m.lock.RLock()
	kp, ok := m.keys[tag]
	m.lock.RUnlock()
	if !ok || kp.Locked != gated {
		return nil, ErrKeyNotFound
	}
	if gated {
		if err := m.opts.gate(ctx, tag); err != nil {
			return nil, err
		}
	}
	return kp, nil
}

func (m *Memory) Delete(_ context.Context, tag Tag, _ bool) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	_, ok := m.keys[tag]
	delete(m.keys, tag)
	return ok, nil
}
