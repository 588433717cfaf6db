package httprepo

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-identity-client/devices"
	"github.com/pkg/errors"
)

// DevicesRepo calls {base}/api/my/devices. Its Client must authenticate
// requests, normally through the pipeline transport.
type DevicesRepo struct {
	client  *Client
	baseURL string
}

var _ devices.Repo = (*DevicesRepo)(nil)

func NewDevicesRepo(client *Client, apiBaseURL string) (*DevicesRepo, error) {
	if client == nil {
		return nil, errors.New("[NewDevicesRepo] client is required")
	}
	if apiBaseURL == "" {
		return nil, errors.New("[NewDevicesRepo] API base URL is required")
	}
	return &DevicesRepo{client: client, baseURL: joinPath(apiBaseURL, "api", "my", "devices")}, nil
}

func (r *DevicesRepo) Devices(ctx context.Context) (devices.ResultSet[devices.DeviceInfo], error) {
	var resp devices.ResultSet[devices.DeviceInfo]
	if err := r.client.do(ctx, request{method: http.MethodGet, url: r.baseURL}, &resp); err != nil {
		return devices.ResultSet[devices.DeviceInfo]{}, errors.Wrap(err, "[DevicesRepo.Devices]")
	}
	return resp, nil
}

func (r *DevicesRepo) Device(ctx context.Context, deviceID string) (devices.DeviceInfo, error) {
	var resp devices.DeviceInfo
	if err := r.client.do(ctx, request{method: http.MethodGet, url: joinPath(r.baseURL, deviceID)}, &resp); err != nil {
		return devices.DeviceInfo{}, errors.Wrap(err, "[DevicesRepo.Device]")
	}
	return resp, nil
}

func (r *DevicesRepo) Create(ctx context.Context, body devices.CreateDeviceRequest) error {
	return r.send(ctx, "[DevicesRepo.Create]", http.MethodPost, r.baseURL, body)
}

func (r *DevicesRepo) Update(ctx context.Context, deviceID string, body devices.UpdateDeviceRequest) error {
	return r.send(ctx, "[DevicesRepo.Update]", http.MethodPut, joinPath(r.baseURL, deviceID), body)
}

func (r *DevicesRepo) Delete(ctx context.Context, deviceID string) error {
	return r.send(ctx, "[DevicesRepo.Delete]", http.MethodDelete, joinPath(r.baseURL, deviceID), nil)
}

type swapDeviceRequest struct {
	SwapDeviceID string `json:"swapDeviceId,omitempty"`
}

func (r *DevicesRepo) Trust(ctx context.Context, deviceID, swapDeviceID string) error {
	return r.send(ctx, "[DevicesRepo.Trust]", http.MethodPut, joinPath(r.baseURL, deviceID, "trust"), swapDeviceRequest{SwapDeviceID: swapDeviceID})
}

func (r *DevicesRepo) Untrust(ctx context.Context, deviceID string) error {
	return r.send(ctx, "[DevicesRepo.Untrust]", http.MethodPut, joinPath(r.baseURL, deviceID, "untrust"), nil)
}

func (r *DevicesRepo) send(ctx context.Context, op, method, endpoint string, body any) error {
	req, err := jsonRequest(method, endpoint, body)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if err := r.client.do(ctx, req, nil); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}
