// Package devices manages the user's registered devices, quick login
// registration for this device and device trust.
package devices

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-identity-client/auth"
	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/jrsteele09/go-identity-client/clients"
	"github.com/jrsteele09/go-identity-client/deviceauth"
	"github.com/jrsteele09/go-identity-client/keystore"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/jrsteele09/go-identity-client/storage"
	"github.com/jrsteele09/go-identity-client/thisdevice"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	devicePinKey   = "device_registration_device_pin"
	fingerprintKey = "device_registration_fingerprint"
	devicesKey     = "user_devices"

	defaultMaxTrustedDevices = 1
	defaultCacheTTL          = 5 * time.Minute
)

// SecurityDataHolder receives the unlocked biometric key after registration.
type SecurityDataHolder interface {
	UpdateSecurityData(data *auth.SecurityData)
}

// DeviceSelector picks the trusted device to give up trust when the limit is
// reached. Returning false aborts the operation.
type DeviceSelector func(ctx context.Context, trusted []DeviceInfo) (DeviceInfo, bool)

// Repos holds all repository dependencies for the Service
type Repos struct {
	Devices    Repo                 // Device CRUD and trust endpoints
	DeviceAuth deviceauth.Repo      // Device trust registration endpoints
	Device     thisdevice.Repo      // This install's ids and description
	Keys       keystore.KeyStore    // Quick login key pairs
	Values     storage.ValueStorage // Quick login flags
}

// Service is the devices domain.
type Service struct {
	repos      Repos
	registrar  *deviceauth.Registrar
	security   SecurityDataHolder
	maxTrusted int
	cacheTTL   time.Duration
	cache      *gocache.Cache
	status     QuickLoginStatus
	lock       sync.Mutex
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithMaxTrustedDevices sets how many other devices may be trusted before a swap is required.
func WithMaxTrustedDevices(n int) ServiceOption {
	return func(s *Service) {
		s.maxTrusted = n
	}
}

// WithCacheTTL sets how long the fetched device list is reused.
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cacheTTL = ttl
	}
}

func NewService(repos Repos, client *clients.Client, security SecurityDataHolder, options ...ServiceOption) (*Service, error) {
	if repos.Devices == nil {
		return nil, errors.New("[NewService] Devices repo is required")
	}
	if repos.Values == nil {
		return nil, errors.New("[NewService] Values storage is required")
	}
	if security == nil {
		return nil, errors.New("[NewService] security data holder is required")
	}
	registrar, err := deviceauth.NewRegistrar(repos.Keys, repos.DeviceAuth, repos.Device, client)
	if err != nil {
		return nil, errors.Wrap(err, "[NewService]")
	}

	s := &Service{
		repos:      repos,
		registrar:  registrar,
		security:   security,
		maxTrusted: defaultMaxTrustedDevices,
		cacheTTL:   defaultCacheTTL,
	}
	for _, opt := range options {
		opt(s)
	}
	s.cache = gocache.New(s.cacheTTL, time.Minute)

	if s.status.HasDevicePin, err = storage.ReadBool(repos.Values, devicePinKey); err != nil {
		return nil, errors.Wrap(err, "[NewService] device pin flag")
	}
	if s.status.HasFingerprint, err = storage.ReadBool(repos.Values, fingerprintKey); err != nil {
		return nil, errors.Wrap(err, "[NewService] fingerprint flag")
	}
	return s, nil
}

// QuickLoginStatus returns the registered quick login methods.
func (s *Service) QuickLoginStatus() QuickLoginStatus {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.status
}

func (s *Service) setQuickLogin(mode oauth2.TrustDeviceMode, value bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	key := devicePinKey
	if mode == oauth2.BiometricMode {
		key = fingerprintKey
		s.status.HasFingerprint = value
	} else {
		s.status.HasDevicePin = value
	}
	if err := storage.StoreBool(s.repos.Values, key, value); err != nil {
		log.Err(err).Str("key", key).Msg("Failed to persist quick login flag")
	}
}

// Devices returns the cached device list. ok is false when nothing is cached.
func (s *Service) Devices() ([]DeviceInfo, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	list, ok := s.cachedDevices()
	if !ok {
		return nil, false
	}
	return append([]DeviceInfo(nil), list...), true
}

// ThisDevice returns the cached record of this install, or nil.
func (s *Service) ThisDevice() *DeviceInfo {
	ids, err := s.repos.Device.IDs()
	if err != nil {
		return nil
	}
	list, _ := s.Devices()
	for i := range list {
		if list[i].DeviceID == ids.Device {
			return &list[i]
		}
	}
	return nil
}

func (s *Service) cachedDevices() ([]DeviceInfo, bool) {
	v, ok := s.cache.Get(devicesKey)
	if !ok {
		return nil, false
	}
	return v.([]DeviceInfo), true
}

func (s *Service) storeDevices(list []DeviceInfo) {
	s.cache.Set(devicesKey, list, gocache.DefaultExpiration)
}

// RefreshDevices fetches the device list.
func (s *Service) RefreshDevices(ctx context.Context) error {
	result, err := s.repos.Devices.Devices(ctx)
	if err != nil {
		return errors.Wrap(err, "[Service.RefreshDevices]")
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.storeDevices(result.Items)
	return nil
}

// refreshDevice replaces one record in the cache, inserting it first when new.
func (s *Service) refreshDevice(ctx context.Context, deviceID string) error {
	device, err := s.repos.Devices.Device(ctx, deviceID)
	if err != nil {
		return errors.Wrapf(err, "[Service.refreshDevice] %s", deviceID)
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	current, _ := s.cachedDevices()
	list := make([]DeviceInfo, 0, len(current)+1)
	replaced := false
	for _, d := range current {
		if d.DeviceID == device.DeviceID {
			d = device
			replaced = true
		}
		list = append(list, d)
	}
	if !replaced {
		list = append([]DeviceInfo{device}, list...)
	}
	s.storeDevices(list)
	return nil
}

// RefreshThisDevice fetches this install's record. It returns nil without an
// error when the server does not know the device.
func (s *Service) RefreshThisDevice(ctx context.Context) (*DeviceInfo, error) {
	ids, err := s.repos.Device.IDs()
	if err != nil {
		return nil, errors.Wrap(err, "[Service.RefreshThisDevice] device ids")
	}
	err = s.refreshDevice(ctx, ids.Device)
	if autherr.IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.ThisDevice(), nil
}

// UpdateThisDeviceRegistration updates this install's server record, creating
// it under fresh ids when the server does not know it.
func (s *Service) UpdateThisDeviceRegistration(ctx context.Context, pnsHandle string, tags []string) error {
	if s.ThisDevice() == nil {
		if err := s.RefreshDevices(ctx); err != nil {
			return err
		}
	}
	info, err := s.repos.Device.Info(ctx)
	if err != nil {
		return errors.Wrap(err, "[Service.UpdateThisDeviceRegistration] device info")
	}

	if s.ThisDevice() != nil {
		ids, err := s.repos.Device.IDs()
		if err != nil {
			return err
		}
		err = s.repos.Devices.Update(ctx, ids.Device, UpdateDeviceRequest{
			Name:      info.Name,
			Tags:      tags,
			PnsHandle: pnsHandle,
			Model:     info.Model,
			OSVersion: info.OSVersion,
		})
		if err != nil {
			return errors.Wrap(err, "[Service.UpdateThisDeviceRegistration] update")
		}
	} else {
		if err := s.repos.Device.ResetIDs(); err != nil {
			return errors.Wrap(err, "[Service.UpdateThisDeviceRegistration] reset ids")
		}
		ids, err := s.repos.Device.IDs()
		if err != nil {
			return err
		}
		err = s.repos.Devices.Create(ctx, CreateDeviceRequest{
			DeviceID:   ids.Device,
			PnsHandle:  pnsHandle,
			Name:       info.Name,
			Platform:   info.Platform,
			ClientType: oauth2.NativeClient,
			Tags:       tags,
			Model:      info.Model,
			OSVersion:  info.OSVersion,
		})
		if err != nil {
			return errors.Wrap(err, "[Service.UpdateThisDeviceRegistration] create")
		}
	}
	return s.RefreshDevices(ctx)
}

// DeleteDevice removes a device from the account.
func (s *Service) DeleteDevice(ctx context.Context, deviceID string) error {
	if err := s.repos.Devices.Delete(ctx, deviceID); err != nil {
		return errors.Wrapf(err, "[Service.DeleteDevice] %s", deviceID)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	current, ok := s.cachedDevices()
	if !ok {
		return nil
	}
	list := make([]DeviceInfo, 0, len(current))
	for _, d := range current {
		if d.DeviceID != deviceID {
			list = append(list, d)
		}
	}
	s.storeDevices(list)
	return nil
}

// RegisterDevicePin starts a PIN registration. Finish it with Registration.Complete.
func (s *Service) RegisterDevicePin(ctx context.Context, pin string, channel oauth2.TotpDeliveryChannel) (*deviceauth.Registration, error) {
	reg, err := s.registrar.BeginPin(ctx, pin, channel, s.registrationHooks(oauth2.PinMode))
	if err != nil {
		s.setQuickLogin(oauth2.PinMode, false)
		return nil, err
	}
	return reg, nil
}

// RegisterDeviceFingerprint starts a biometric registration. Finish it with Registration.Complete.
func (s *Service) RegisterDeviceFingerprint(ctx context.Context, channel oauth2.TotpDeliveryChannel) (*deviceauth.Registration, error) {
	reg, err := s.registrar.BeginBiometric(ctx, channel, s.registrationHooks(oauth2.BiometricMode))
	if err != nil {
		s.setQuickLogin(oauth2.BiometricMode, false)
		return nil, err
	}
	return reg, nil
}

func (s *Service) registrationHooks(mode oauth2.TrustDeviceMode) deviceauth.Hooks {
	return deviceauth.Hooks{
		Completed: func(ctx context.Context, result deviceauth.RegistrationResult, key *keystore.KeyPair) error {
			if err := s.repos.Device.SetRegistrationID(result.RegistrationID); err != nil {
				return errors.Wrap(err, "store registration id")
			}
			s.setQuickLogin(mode, true)
			if mode == oauth2.BiometricMode {
				s.security.UpdateSecurityData(auth.NewSecurityData(key))
			}
			ids, err := s.repos.Device.IDs()
			if err == nil {
				err = s.refreshDevice(ctx, ids.Device)
			}
			if err != nil {
				log.Warn().Err(err).Msg("Registered device but could not refresh its record")
			}
			return nil
		},
		Failed: func(context.Context, error) {
			s.setQuickLogin(mode, false)
			if mode == oauth2.BiometricMode {
				s.security.UpdateSecurityData(nil)
			}
		},
	}
}

// RemoveRegistrationDevicePin deletes the PIN key.
func (s *Service) RemoveRegistrationDevicePin(ctx context.Context) error {
	return s.removeRegistration(ctx, oauth2.PinMode)
}

// RemoveRegistrationFingerprint deletes the biometric key.
func (s *Service) RemoveRegistrationFingerprint(ctx context.Context) error {
	return s.removeRegistration(ctx, oauth2.BiometricMode)
}

func (s *Service) removeRegistration(ctx context.Context, mode oauth2.TrustDeviceMode) error {
	tag, gated := deviceauth.TagFor(mode)
	if _, err := s.repos.Keys.Delete(ctx, tag, gated); err != nil {
		return errors.Wrapf(err, "[Service.removeRegistration] %s", mode)
	}
	s.setQuickLogin(mode, false)
	if mode == oauth2.BiometricMode {
		s.security.UpdateSecurityData(nil)
	}
	if !s.QuickLoginStatus().HasQuickLogin() {
		if err := s.repos.Device.SetRegistrationID(""); err != nil {
			return errors.Wrap(err, "[Service.removeRegistration] clear registration id")
		}
	}
	return nil
}

// EnableDeviceTrust trusts this device. When the other trusted devices are
// already at the limit, selector must pick one to swap out; if it declines the
// call fails with autherr.ErrDeviceLimitReached and nothing changes.
func (s *Service) EnableDeviceTrust(ctx context.Context, selector DeviceSelector) error {
	ids, err := s.repos.Device.IDs()
	if err != nil {
		return errors.Wrap(err, "[Service.EnableDeviceTrust] device ids")
	}
	list, ok := s.Devices()
	if !ok {
		if err := s.RefreshDevices(ctx); err != nil {
			return err
		}
		list, _ = s.Devices()
	}

	var trusted []DeviceInfo
	for _, d := range list {
		if d.DeviceID != ids.Device && d.IsTrusted {
			trusted = append(trusted, d)
		}
	}

	swapDeviceID := ""
	if len(trusted) >= s.maxTrusted {
		if selector == nil {
			return autherr.ErrDeviceLimitReached
		}
		swap, ok := selector(ctx, trusted)
		if !ok || swap.DeviceID == "" {
			return autherr.ErrDeviceLimitReached
		}
		swapDeviceID = swap.DeviceID
	}

	if err := s.repos.Devices.Trust(ctx, ids.Device, swapDeviceID); err != nil {
		return errors.Wrap(err, "[Service.EnableDeviceTrust] trust")
	}
	if err := s.refreshDevice(ctx, ids.Device); err != nil {
		return err
	}
	if swapDeviceID != "" {
		return s.refreshDevice(ctx, swapDeviceID)
	}
	return nil
}

// RemoveDeviceTrust untrusts this device.
func (s *Service) RemoveDeviceTrust(ctx context.Context) error {
	ids, err := s.repos.Device.IDs()
	if err != nil {
		return errors.Wrap(err, "[Service.RemoveDeviceTrust] device ids")
	}
	if err := s.repos.Devices.Untrust(ctx, ids.Device); err != nil {
		return errors.Wrap(err, "[Service.RemoveDeviceTrust] untrust")
	}
	return s.refreshDevice(ctx, ids.Device)
}
