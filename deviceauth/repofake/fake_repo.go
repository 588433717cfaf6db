package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-identity-client/deviceauth"
)

var _ deviceauth.Repo = (*FakeRepo)(nil)

// FakeRepo answers device trust calls from fixed values and records what it was sent.
type FakeRepo struct {
	Challenge      string
	RegistrationID string
	InitializeErr  error
	AuthorizeErr   error
	CompleteErr    error

	Initialized []deviceauth.AuthorizationRequest
	Authorized  []deviceauth.AuthorizationRequest
	Completed   []deviceauth.RegistrationRequest
	lock        sync.Mutex
}

func NewFakeRepo(challenge, registrationID string) *FakeRepo {
	return &FakeRepo{Challenge: challenge, RegistrationID: registrationID}
}

func (f *FakeRepo) Initialize(_ context.Context, req deviceauth.AuthorizationRequest) (deviceauth.ChallengeResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Initialized = append(f.Initialized, req)
	if f.InitializeErr != nil {
		return deviceauth.ChallengeResponse{}, f.InitializeErr
	}
	return deviceauth.ChallengeResponse{Challenge: f.Challenge}, nil
}

func (f *FakeRepo) Authorize(_ context.Context, req deviceauth.AuthorizationRequest) (deviceauth.ChallengeResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Authorized = append(f.Authorized, req)
	if f.AuthorizeErr != nil {
		return deviceauth.ChallengeResponse{}, f.AuthorizeErr
	}
	return deviceauth.ChallengeResponse{Challenge: f.Challenge}, nil
}

func (f *FakeRepo) Complete(_ context.Context, req deviceauth.RegistrationRequest) (deviceauth.RegistrationResult, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Completed = append(f.Completed, req)
	if f.CompleteErr != nil {
		return deviceauth.RegistrationResult{}, f.CompleteErr
	}
	return deviceauth.RegistrationResult{RegistrationID: f.RegistrationID}, nil
}

// CompleteCalls returns how many complete requests were received.
func (f *FakeRepo) CompleteCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.Completed)
}
