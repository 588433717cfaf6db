package deviceauth

import "context"

// Repo is the device trust endpoint set of the identity server.
type Repo interface {
	Initialize(ctx context.Context, req AuthorizationRequest) (ChallengeResponse, error)
	Authorize(ctx context.Context, req AuthorizationRequest) (ChallengeResponse, error)
	Complete(ctx context.Context, req RegistrationRequest) (RegistrationResult, error)
}
