package httprepo

import (
	"context"

	"github.com/jrsteele09/go-identity-client/deviceauth"
	"github.com/pkg/errors"
)

// DeviceAuthURLs are the three device trust endpoints.
type DeviceAuthURLs struct {
	Initialize string
	Authorize  string
	Complete   string
}

// DeviceAuthRepo posts device trust requests as forms.
type DeviceAuthRepo struct {
	client *Client
	urls   DeviceAuthURLs
}

var _ deviceauth.Repo = (*DeviceAuthRepo)(nil)

func NewDeviceAuthRepo(client *Client, urls DeviceAuthURLs) (*DeviceAuthRepo, error) {
	if client == nil {
		return nil, errors.New("[NewDeviceAuthRepo] client is required")
	}
	if urls.Initialize == "" || urls.Authorize == "" || urls.Complete == "" {
		return nil, errors.New("[NewDeviceAuthRepo] all device auth URLs are required")
	}
	return &DeviceAuthRepo{client: client, urls: urls}, nil
}

func (r *DeviceAuthRepo) Initialize(ctx context.Context, req deviceauth.AuthorizationRequest) (deviceauth.ChallengeResponse, error) {
	var resp deviceauth.ChallengeResponse
	if err := r.client.do(ctx, formRequest(r.urls.Initialize, req.Form()), &resp); err != nil {
		return deviceauth.ChallengeResponse{}, errors.Wrap(err, "[DeviceAuthRepo.Initialize]")
	}
	return resp, nil
}

func (r *DeviceAuthRepo) Authorize(ctx context.Context, req deviceauth.AuthorizationRequest) (deviceauth.ChallengeResponse, error) {
	var resp deviceauth.ChallengeResponse
	if err := r.client.do(ctx, formRequest(r.urls.Authorize, req.Form()), &resp); err != nil {
		return deviceauth.ChallengeResponse{}, errors.Wrap(err, "[DeviceAuthRepo.Authorize]")
	}
	return resp, nil
}

func (r *DeviceAuthRepo) Complete(ctx context.Context, req deviceauth.RegistrationRequest) (deviceauth.RegistrationResult, error) {
	var resp deviceauth.RegistrationResult
	if err := r.client.do(ctx, formRequest(r.urls.Complete, req.Form()), &resp); err != nil {
		return deviceauth.RegistrationResult{}, errors.Wrap(err, "[DeviceAuthRepo.Complete]")
	}
	return resp, nil
}
