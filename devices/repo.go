package devices

import "context"

// Repo is the /api/my/devices endpoint set.
type Repo interface {
	Devices(ctx context.Context) (ResultSet[DeviceInfo], error)
	Device(ctx context.Context, deviceID string) (DeviceInfo, error)
	Create(ctx context.Context, req CreateDeviceRequest) error
	Update(ctx context.Context, deviceID string, req UpdateDeviceRequest) error
	Delete(ctx context.Context, deviceID string) error
	// Trust marks deviceID trusted. A non empty swapDeviceID loses its trust in exchange.
	Trust(ctx context.Context, deviceID, swapDeviceID string) error
	Untrust(ctx context.Context, deviceID string) error
}
