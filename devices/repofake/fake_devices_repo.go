package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/jrsteele09/go-identity-client/devices"
)

var _ devices.Repo = (*FakeDevicesRepo)(nil)

// TrustCall records one Trust request.
type TrustCall struct {
	DeviceID     string
	SwapDeviceID string
}

// FakeDevicesRepo is an in-memory device list that behaves like the server.
type FakeDevicesRepo struct {
	DevicesErr error

	devices    []devices.DeviceInfo
	trustCalls []TrustCall
	listCalls  int
	lock       sync.Mutex
}

func NewFakeDevicesRepo(initial ...devices.DeviceInfo) *FakeDevicesRepo {
	return &FakeDevicesRepo{devices: append([]devices.DeviceInfo(nil), initial...)}
}

func (f *FakeDevicesRepo) Devices(context.Context) (devices.ResultSet[devices.DeviceInfo], error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.listCalls++
	if f.DevicesErr != nil {
		return devices.ResultSet[devices.DeviceInfo]{}, f.DevicesErr
	}
	items := append([]devices.DeviceInfo(nil), f.devices...)
	return devices.ResultSet[devices.DeviceInfo]{Count: len(items), Items: items}, nil
}

func (f *FakeDevicesRepo) Device(_ context.Context, deviceID string) (devices.DeviceInfo, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if i := f.index(deviceID); i >= 0 {
		return f.devices[i], nil
	}
	return devices.DeviceInfo{}, autherr.NewAPIError(404, nil)
}

func (f *FakeDevicesRepo) Create(_ context.Context, req devices.CreateDeviceRequest) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.devices = append(f.devices, devices.DeviceInfo{
		DeviceID:   req.DeviceID,
		Name:       req.Name,
		Platform:   req.Platform,
		ClientType: req.ClientType,
		Model:      req.Model,
		OSVersion:  req.OSVersion,
		Tags:       req.Tags,
	})
	return nil
}

func (f *FakeDevicesRepo) Update(_ context.Context, deviceID string, req devices.UpdateDeviceRequest) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	i := f.index(deviceID)
	if i < 0 {
		return autherr.NewAPIError(404, nil)
	}
	f.devices[i].Name = req.Name
	f.devices[i].Tags = req.Tags
	f.devices[i].Model = req.Model
	f.devices[i].OSVersion = req.OSVersion
	return nil
}

func (f *FakeDevicesRepo) Delete(_ context.Context, deviceID string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	i := f.index(deviceID)
	if i < 0 {
		return autherr.NewAPIError(404, nil)
	}
	f.devices = append(f.devices[:i], f.devices[i+1:]...)
	return nil
}

func (f *FakeDevicesRepo) Trust(_ context.Context, deviceID, swapDeviceID string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.trustCalls = append(f.trustCalls, TrustCall{DeviceID: deviceID, SwapDeviceID: swapDeviceID})
	i := f.index(deviceID)
	if i < 0 {
		return autherr.NewAPIError(404, nil)
	}
	f.devices[i].IsTrusted = true
	if j := f.index(swapDeviceID); j >= 0 {
		f.devices[j].IsTrusted = false
	}
	return nil
}

func (f *FakeDevicesRepo) Untrust(_ context.Context, deviceID string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	i := f.index(deviceID)
	if i < 0 {
		return autherr.NewAPIError(404, nil)
	}
	f.devices[i].IsTrusted = false
	return nil
}

// Add places devices on the server side without going through Create.
func (f *FakeDevicesRepo) Add(ds ...devices.DeviceInfo) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.devices = append(f.devices, ds...)
}

// TrustCalls returns the Trust requests received so far.
func (f *FakeDevicesRepo) TrustCalls() []TrustCall {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]TrustCall(nil), f.trustCalls...)
}

// ListCalls returns how many times the list was fetched.
func (f *FakeDevicesRepo) ListCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.listCalls
}

func (f *FakeDevicesRepo) index(deviceID string) int {
	if deviceID == "" {
		return -1
	}
	for i := range f.devices {
		if f.devices[i].DeviceID == deviceID {
			return i
		}
	}
	return -1
}
