package devices_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-identity-client/auth"
	authfake "github.com/jrsteele09/go-identity-client/auth/repofake"
	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/jrsteele09/go-identity-client/clients"
	"github.com/jrsteele09/go-identity-client/deviceauth"
	deviceauthfake "github.com/jrsteele09/go-identity-client/deviceauth/repofake"
	"github.com/jrsteele09/go-identity-client/devices"
	devicesfake "github.com/jrsteele09/go-identity-client/devices/repofake"
	"github.com/jrsteele09/go-identity-client/keystore"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/jrsteele09/go-identity-client/storage"
	"github.com/jrsteele09/go-identity-client/thisdevice"
	"github.com/jrsteele09/go-identity-client/token"
	"github.com/stretchr/testify/require"
)

const (
	testClientID       = "mobile-app"
	testChallenge      = "chal1"
	testRegistrationID = "reg-42"
	testPin            = "1234"
	testOtp            = "123456"
	otherDeviceID      = "other-device"
	thirdDeviceID      = "third-device"
)

// testFixture holds all test dependencies
type testFixture struct {
	devicesRepo *devicesfake.FakeDevicesRepo
	deviceAuth  *deviceauthfake.FakeRepo
	device      *thisdevice.Repository
	keys        *keystore.Memory
	values      *storage.Memory
	client      *clients.Client
	auth        *auth.AuthorizationService
	service     *devices.Service
	deviceID    string
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T, options ...devices.ServiceOption) *testFixture {
	t.Helper()

	f := &testFixture{
		devicesRepo: devicesfake.NewFakeDevicesRepo(),
		deviceAuth:  deviceauthfake.NewFakeRepo(testChallenge, testRegistrationID),
		keys:        keystore.NewMemory(),
		values:      storage.NewMemory(),
		client:      &clients.Client{ID: testClientID, Secret: "secret", UserScope: "openid"},
	}

	var err error
	f.device, err = thisdevice.NewRepository(storage.NewMemory(), storage.NewMemory(), thisdevice.StaticInfo{
		Name:     "test phone",
		Model:    "Pixel",
		Platform: oauth2.PlatformAndroid,
	})
	require.NoError(t, err)
	ids, err := f.device.IDs()
	require.NoError(t, err)
	f.deviceID = ids.Device

	tokens, err := token.NewStore()
	require.NoError(t, err)
	f.auth, err = auth.NewAuthorizationService(auth.Repos{
		Tokens:     authfake.NewFakeTokenRepo(),
		DeviceAuth: f.deviceAuth,
		Device:     f.device,
		Keys:       f.keys,
	}, f.client, tokens)
	require.NoError(t, err)

	f.service = f.newService(t, options...)
	return f
}

func (f *testFixture) newService(t *testing.T, options ...devices.ServiceOption) *devices.Service {
	t.Helper()
	service, err := devices.NewService(devices.Repos{
		Devices:    f.devicesRepo,
		DeviceAuth: f.deviceAuth,
		Device:     f.device,
		Keys:       f.keys,
		Values:     f.values,
	}, f.client, f.auth, options...)
	require.NoError(t, err)
	return service
}

func TestNewService_Validation(t *testing.T) {
	_, err := devices.NewService(devices.Repos{}, &clients.Client{}, nil)
	require.Error(t, err)
}

func TestRegisterDevicePin(t *testing.T) {
	t.Run("completes and stores the registration id", func(t *testing.T) {
		f := setupTestFixture(t)
		f.devicesRepo.Add(devices.DeviceInfo{DeviceID: f.deviceID, Name: "test phone"})
		ctx := context.Background()

		reg, err := f.service.RegisterDevicePin(ctx, testPin, oauth2.ChannelSms)
		require.NoError(t, err)
		require.Equal(t, deviceauth.StateAwaitingOtp, reg.State())
		require.Len(t, f.deviceAuth.Initialized, 1)
		require.Equal(t, oauth2.PinMode, f.deviceAuth.Initialized[0].Mode)

		outcome, err := reg.Complete(ctx, deviceauth.SubmitOtp(testOtp))
		require.NoError(t, err)
		require.Equal(t, testRegistrationID, outcome.RegistrationID)

		ids, err := f.device.IDs()
		require.NoError(t, err)
		require.Equal(t, testRegistrationID, ids.Registration)
		require.True(t, f.service.QuickLoginStatus().HasDevicePin)
		require.False(t, f.service.QuickLoginStatus().HasFingerprint)

		completed := f.deviceAuth.Completed[0]
		require.Equal(t, testChallenge, completed.Code)
		require.Equal(t, testOtp, completed.Otp)
		require.NotEmpty(t, completed.Pin)
		require.NotEqual(t, testPin, completed.Pin)
		require.Empty(t, completed.PublicKey)

		// the refreshed record lands in the cache
		require.NotNil(t, f.service.ThisDevice())

		// flags survive a restart
		require.True(t, f.newService(t).QuickLoginStatus().HasDevicePin)

		// PIN registration never installs a signing context
		_, _, err = f.auth.SignWithBiometricSecurityContext([]byte("payload"), keystore.Message)
		require.ErrorIs(t, err, autherr.ErrSigningNotAvailable)
	})

	t.Run("abort leaves nothing registered", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()

		reg, err := f.service.RegisterDevicePin(ctx, testPin, oauth2.ChannelSms)
		require.NoError(t, err)
		outcome, err := reg.Complete(ctx, deviceauth.AbortOtp())
		require.NoError(t, err)
		require.True(t, outcome.Aborted)
		require.Zero(t, f.deviceAuth.CompleteCalls())
		require.False(t, f.service.QuickLoginStatus().HasDevicePin)

		ids, err := f.device.IDs()
		require.NoError(t, err)
		require.Empty(t, ids.Registration)
	})

	t.Run("server rejection clears the flag", func(t *testing.T) {
		f := setupTestFixture(t)
		f.deviceAuth.CompleteErr = autherr.NewAPIError(400, nil)
		ctx := context.Background()

		reg, err := f.service.RegisterDevicePin(ctx, testPin, oauth2.ChannelSms)
		require.NoError(t, err)
		_, err = reg.Complete(ctx, deviceauth.SubmitOtp(testOtp))
		require.Error(t, err)
		require.True(t, autherr.IsStatus(err, 400))
		require.Equal(t, deviceauth.StateFailed, reg.State())
		require.False(t, f.service.QuickLoginStatus().HasDevicePin)
	})

	t.Run("initialize failure is returned", func(t *testing.T) {
		f := setupTestFixture(t)
		f.deviceAuth.InitializeErr = autherr.NewAPIError(500, nil)

		_, err := f.service.RegisterDevicePin(context.Background(), testPin, oauth2.ChannelSms)
		require.True(t, autherr.IsStatus(err, 500))
	})
}

func TestRegisterDeviceFingerprint(t *testing.T) {
	t.Run("installs the signing context", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()

		reg, err := f.service.RegisterDeviceFingerprint(ctx, oauth2.ChannelEmail)
		require.NoError(t, err)
		_, err = reg.Complete(ctx, deviceauth.SubmitOtp(testOtp))
		require.NoError(t, err)

		require.True(t, f.service.QuickLoginStatus().HasFingerprint)
		require.Contains(t, f.deviceAuth.Completed[0].PublicKey, "-----BEGIN RSA PUBLIC KEY-----")
		require.Empty(t, f.deviceAuth.Completed[0].Pin)

		sig, der, err := f.auth.SignWithBiometricSecurityContext([]byte("payload"), keystore.Message)
		require.NoError(t, err)
		require.NotEmpty(t, sig)
		require.NotEmpty(t, der)
	})

	t.Run("failure clears the signing context", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()

		first, err := f.service.RegisterDeviceFingerprint(ctx, oauth2.ChannelEmail)
		require.NoError(t, err)
		_, err = first.Complete(ctx, deviceauth.SubmitOtp(testOtp))
		require.NoError(t, err)

		f.deviceAuth.CompleteErr = autherr.NewAPIError(400, nil)
		second, err := f.service.RegisterDeviceFingerprint(ctx, oauth2.ChannelEmail)
		require.NoError(t, err)
		_, err = second.Complete(ctx, deviceauth.SubmitOtp(testOtp))
		require.Error(t, err)

		require.False(t, f.service.QuickLoginStatus().HasFingerprint)
		_, _, err = f.auth.SignWithBiometricSecurityContext([]byte("payload"), keystore.Message)
		require.ErrorIs(t, err, autherr.ErrSigningNotAvailable)
	})
}

func TestRemoveRegistration(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	for _, begin := range []func() (*deviceauth.Registration, error){
		func() (*deviceauth.Registration, error) {
			return f.service.RegisterDevicePin(ctx, testPin, oauth2.ChannelSms)
		},
		func() (*deviceauth.Registration, error) { return f.service.RegisterDeviceFingerprint(ctx, oauth2.ChannelSms) },
	} {
		reg, err := begin()
		require.NoError(t, err)
		_, err = reg.Complete(ctx, deviceauth.SubmitOtp(testOtp))
		require.NoError(t, err)
	}
	require.Equal(t, devices.QuickLoginStatus{HasDevicePin: true, HasFingerprint: true}, f.service.QuickLoginStatus())

	require.NoError(t, f.service.RemoveRegistrationFingerprint(ctx))
	ids, err := f.device.IDs()
	require.NoError(t, err)
	require.Equal(t, testRegistrationID, ids.Registration, "pin still registered")
	_, _, err = f.auth.SignWithBiometricSecurityContext([]byte("payload"), keystore.Message)
	require.ErrorIs(t, err, autherr.ErrSigningNotAvailable)

	require.NoError(t, f.service.RemoveRegistrationDevicePin(ctx))
	ids, err = f.device.IDs()
	require.NoError(t, err)
	require.Empty(t, ids.Registration)
	require.False(t, f.service.QuickLoginStatus().HasQuickLogin())

	_, err = f.keys.Load(ctx, keystore.DevicePinTag, false)
	require.ErrorIs(t, err, keystore.ErrKeyNotFound)
}

func TestEnableDeviceTrust(t *testing.T) {
	noSelector := func(t *testing.T) devices.DeviceSelector {
		return func(context.Context, []devices.DeviceInfo) (devices.DeviceInfo, bool) {
			t.Fatal("selector should not be called")
			return devices.DeviceInfo{}, false
		}
	}

	t.Run("trusts directly below the limit", func(t *testing.T) {
		f := setupTestFixture(t)
		f.devicesRepo.Add(
			devices.DeviceInfo{DeviceID: f.deviceID},
			devices.DeviceInfo{DeviceID: otherDeviceID},
		)

		require.NoError(t, f.service.EnableDeviceTrust(context.Background(), noSelector(t)))
		require.Equal(t, []devicesfake.TrustCall{{DeviceID: f.deviceID}}, f.devicesRepo.TrustCalls())
		require.True(t, f.service.ThisDevice().IsTrusted)
	})

	t.Run("swaps the selected device at the limit", func(t *testing.T) {
		f := setupTestFixture(t, devices.WithMaxTrustedDevices(2))
		f.devicesRepo.Add(
			devices.DeviceInfo{DeviceID: f.deviceID},
			devices.DeviceInfo{DeviceID: otherDeviceID, IsTrusted: true},
			devices.DeviceInfo{DeviceID: thirdDeviceID, IsTrusted: true},
		)

		var offered []devices.DeviceInfo
		err := f.service.EnableDeviceTrust(context.Background(), func(_ context.Context, trusted []devices.DeviceInfo) (devices.DeviceInfo, bool) {
			offered = trusted
			return trusted[1], true
		})
		require.NoError(t, err)
		require.Len(t, offered, 2)
		require.Equal(t, []devicesfake.TrustCall{{DeviceID: f.deviceID, SwapDeviceID: thirdDeviceID}}, f.devicesRepo.TrustCalls())

		list, ok := f.service.Devices()
		require.True(t, ok)
		for _, d := range list {
			switch d.DeviceID {
			case f.deviceID, otherDeviceID:
				require.True(t, d.IsTrusted, d.DeviceID)
			case thirdDeviceID:
				require.False(t, d.IsTrusted)
			}
		}
	})

	t.Run("selector abort fails without trusting", func(t *testing.T) {
		f := setupTestFixture(t)
		f.devicesRepo.Add(
			devices.DeviceInfo{DeviceID: f.deviceID},
			devices.DeviceInfo{DeviceID: otherDeviceID, IsTrusted: true},
		)
		ctx := context.Background()
		require.NoError(t, f.service.RefreshDevices(ctx))
		before, ok := f.service.Devices()
		require.True(t, ok)

		err := f.service.EnableDeviceTrust(ctx, func(context.Context, []devices.DeviceInfo) (devices.DeviceInfo, bool) {
			return devices.DeviceInfo{}, false
		})
		require.ErrorIs(t, err, autherr.ErrDeviceLimitReached)
		require.Empty(t, f.devicesRepo.TrustCalls())

		after, ok := f.service.Devices()
		require.True(t, ok)
		require.Equal(t, before, after)
		require.NotNil(t, f.service.ThisDevice())
		require.False(t, f.service.ThisDevice().IsTrusted)
	})

	t.Run("this device does not count toward the limit", func(t *testing.T) {
		f := setupTestFixture(t)
		f.devicesRepo.Add(devices.DeviceInfo{DeviceID: f.deviceID, IsTrusted: true})

		require.NoError(t, f.service.EnableDeviceTrust(context.Background(), noSelector(t)))
	})
}

func TestRemoveDeviceTrust(t *testing.T) {
	f := setupTestFixture(t)
	f.devicesRepo.Add(devices.DeviceInfo{DeviceID: f.deviceID, IsTrusted: true})
	ctx := context.Background()
	require.NoError(t, f.service.RefreshDevices(ctx))

	require.NoError(t, f.service.RemoveDeviceTrust(ctx))
	require.False(t, f.service.ThisDevice().IsTrusted)
}

func TestUpdateThisDeviceRegistration(t *testing.T) {
	t.Run("creates an unknown device under new ids", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()

		require.NoError(t, f.service.UpdateThisDeviceRegistration(ctx, "pns-1", []string{"beta"}))

		ids, err := f.device.IDs()
		require.NoError(t, err)
		require.NotEqual(t, f.deviceID, ids.Device)

		this := f.service.ThisDevice()
		require.NotNil(t, this)
		require.Equal(t, ids.Device, this.DeviceID)
		require.Equal(t, "test phone", this.Name)
		require.Equal(t, oauth2.NativeClient, this.ClientType)
		require.Equal(t, []string{"beta"}, this.Tags)
	})

	t.Run("updates a known device in place", func(t *testing.T) {
		f := setupTestFixture(t)
		f.devicesRepo.Add(devices.DeviceInfo{DeviceID: f.deviceID, Name: "old name"})
		ctx := context.Background()

		require.NoError(t, f.service.UpdateThisDeviceRegistration(ctx, "pns-1", nil))

		ids, err := f.device.IDs()
		require.NoError(t, err)
		require.Equal(t, f.deviceID, ids.Device)
		require.Equal(t, "test phone", f.service.ThisDevice().Name)
	})
}

func TestDevicesCache(t *testing.T) {
	f := setupTestFixture(t)
	f.devicesRepo.Add(
		devices.DeviceInfo{DeviceID: f.deviceID},
		devices.DeviceInfo{DeviceID: otherDeviceID},
	)
	ctx := context.Background()

	_, ok := f.service.Devices()
	require.False(t, ok)

	require.NoError(t, f.service.RefreshDevices(ctx))
	list, ok := f.service.Devices()
	require.True(t, ok)
	require.Len(t, list, 2)

	require.NoError(t, f.service.DeleteDevice(ctx, otherDeviceID))
	list, _ = f.service.Devices()
	require.Len(t, list, 1)
	require.Equal(t, f.deviceID, list[0].DeviceID)
	require.Equal(t, 1, f.devicesRepo.ListCalls())

	require.True(t, autherr.IsStatus(f.service.DeleteDevice(ctx, otherDeviceID), 404))
}

func TestRefreshThisDevice(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	this, err := f.service.RefreshThisDevice(ctx)
	require.NoError(t, err)
	require.Nil(t, this)

	f.devicesRepo.Add(devices.DeviceInfo{DeviceID: f.deviceID, Name: "test phone"})
	this, err = f.service.RefreshThisDevice(ctx)
	require.NoError(t, err)
	require.NotNil(t, this)
	require.Equal(t, "test phone", this.Name)
}
