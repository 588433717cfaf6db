package deviceauth

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/jrsteele09/go-identity-client/clients"
	"github.com/jrsteele09/go-identity-client/internal/cryptorand"
	"github.com/jrsteele09/go-identity-client/keystore"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/jrsteele09/go-identity-client/thisdevice"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// State is the position of a Registration in the protocol.
type State int

const (
	StateIdle State = iota
	StateKeyCreated
	StateInitialized
	StateSigned
	StateAwaitingOtp
	StateCompleted
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateKeyCreated:
		return "key_created"
	case StateInitialized:
		return "initialized"
	case StateSigned:
		return "signed"
	case StateAwaitingOtp:
		return "awaiting_otp"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// TagFor returns the key store tag and gating used for mode.
func TagFor(mode oauth2.TrustDeviceMode) (keystore.Tag, bool) {
	if mode == oauth2.BiometricMode {
		return keystore.FingerprintTag, true
	}
	return keystore.DevicePinTag, false
}

// Hooks run inside Complete while the registration is still locked.
type Hooks struct {
	// Completed runs after the server accepted the registration. An error
	// turns the outcome into a failure.
	Completed func(ctx context.Context, result RegistrationResult, key *keystore.KeyPair) error
	// Failed runs when the complete call or Completed fails.
	Failed func(ctx context.Context, err error)
}

// Outcome is the result of Complete. Aborted registrations carry no id.
type Outcome struct {
	Aborted        bool
	RegistrationID string
}

// Registrar starts registrations.
type Registrar struct {
	keys   keystore.KeyStore
	repo   Repo
	device thisdevice.Repo
	client *clients.Client
}

func NewRegistrar(keys keystore.KeyStore, repo Repo, device thisdevice.Repo, client *clients.Client) (*Registrar, error) {
	if keys == nil {
		return nil, errors.New("[NewRegistrar] key store is required")
	}
	if repo == nil {
		return nil, errors.New("[NewRegistrar] device auth repo is required")
	}
	if device == nil {
		return nil, errors.New("[NewRegistrar] device repo is required")
	}
	if client == nil {
		return nil, errors.New("[NewRegistrar] client is required")
	}
	return &Registrar{keys: keys, repo: repo, device: device, client: client}, nil
}

// BeginPin registers a PIN. The PIN itself never leaves the device.
func (r *Registrar) BeginPin(ctx context.Context, pin string, channel oauth2.TotpDeliveryChannel, hooks Hooks) (*Registration, error) {
	return r.begin(ctx, oauth2.PinMode, pin, channel, hooks)
}

// BeginBiometric registers a gated key whose public half is sent to the server.
func (r *Registrar) BeginBiometric(ctx context.Context, channel oauth2.TotpDeliveryChannel, hooks Hooks) (*Registration, error) {
	return r.begin(ctx, oauth2.BiometricMode, "", channel, hooks)
}

// begin runs the protocol up to the one time password step. The previous key
// for mode is deleted before anything else, so every failure leaves the mode
// unregistered.
func (r *Registrar) begin(ctx context.Context, mode oauth2.TrustDeviceMode, pin string, channel oauth2.TotpDeliveryChannel, hooks Hooks) (*Registration, error) {
	tag, gated := TagFor(mode)
	if _, err := r.keys.Delete(ctx, tag, gated); err != nil {
		return nil, errors.Wrap(err, "[Registrar.begin] delete key")
	}

	ids, err := r.device.IDs()
	if err != nil {
		return nil, errors.Wrap(err, "[Registrar.begin] device ids")
	}
	info, err := r.device.Info(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Registrar.begin] device info")
	}

	reg := &Registration{
		mode:     mode,
		deviceID: ids.Device,
		info:     info,
		repo:     r.repo,
		hooks:    hooks,
	}
	if reg.key, err = r.keys.Create(ctx, tag, gated); err != nil {
		return nil, errors.Wrap(err, "[Registrar.begin] create key")
	}
	reg.state = StateKeyCreated

	if reg.verifier, err = cryptorand.UniqueID(); err != nil {
		return nil, err
	}
	req := NewAuthorizationRequest(cryptorand.S256(reg.verifier), mode, ids, r.client, channel)
	challenge, err := r.repo.Initialize(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "[Registrar.begin] initialize")
	}
	reg.challenge = challenge.Challenge
	reg.state = StateInitialized

	if reg.signature, err = keystore.SignString(reg.key, reg.challenge); err != nil {
		return nil, errors.Wrap(err, "[Registrar.begin] sign challenge")
	}
	switch mode {
	case oauth2.PinMode:
		if reg.pinHash, err = keystore.PreparePin(pin, ids.Device, reg.key); err != nil {
			return nil, err
		}
	case oauth2.BiometricMode:
		reg.publicKeyPEM = reg.key.PublicKeyPEM()
	}
	reg.state = StateAwaitingOtp
	return reg, nil
}

// Registration is a registration waiting for its one time password.
// Complete may be called once.
type Registration struct {
	mode         oauth2.TrustDeviceMode
	deviceID     string
	info         thisdevice.Info
	key          *keystore.KeyPair
	verifier     string
	challenge    string
	signature    string
	pinHash      string
	publicKeyPEM string
	repo         Repo
	hooks        Hooks
	state        State
	lock         sync.Mutex
}

func (r *Registration) Mode() oauth2.TrustDeviceMode { return r.mode }

func (r *Registration) State() State {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state
}

// Complete finishes the registration with the caller's OTP answer.
// An abort is not an error; the created key stays in place until the caller removes it.
func (r *Registration) Complete(ctx context.Context, otp OtpResult) (Outcome, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.state != StateAwaitingOtp {
		return Outcome{}, autherr.ErrRegistrationConsumed
	}
	if otp.Aborted() {
		r.state = StateAborted
		return Outcome{Aborted: true}, nil
	}

	req := RegistrationRequest{
		Code:           r.challenge,
		CodeVerifier:   r.verifier,
		CodeSignature:  r.signature,
		Mode:           r.mode,
		DeviceID:       r.deviceID,
		DeviceName:     r.info.Name,
		DevicePlatform: r.info.Platform,
		Otp:            otp.Value(),
		PublicKey:      r.publicKeyPEM,
		Pin:            r.pinHash,
	}
	result, err := r.repo.Complete(ctx, req)
	if err == nil && r.hooks.Completed != nil {
		err = r.hooks.Completed(ctx, result, r.key)
	}
	if err != nil {
		r.state = StateFailed
		log.Err(err).Str("mode", string(r.mode)).Msg("Device registration failed")
		if r.hooks.Failed != nil {
			r.hooks.Failed(ctx, err)
		}
		return Outcome{}, errors.Wrap(err, "[Registration.Complete]")
	}

	r.state = StateCompleted
	log.Info().Str("mode", string(r.mode)).Msg("Device registration completed")
	return Outcome{RegistrationID: result.RegistrationID}, nil
}
