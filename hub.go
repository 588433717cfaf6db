// Package identity wires the identity client's services together.
package identity

import (
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-identity-client/auth"
	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/jrsteele09/go-identity-client/clients"
	"github.com/jrsteele09/go-identity-client/devices"
	"github.com/jrsteele09/go-identity-client/httprepo"
	"github.com/jrsteele09/go-identity-client/internal/config"
	"github.com/jrsteele09/go-identity-client/keystore"
	"github.com/jrsteele09/go-identity-client/pipeline"
	"github.com/jrsteele09/go-identity-client/storage"
	"github.com/jrsteele09/go-identity-client/thisdevice"
	"github.com/jrsteele09/go-identity-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Endpoints are the identity server URLs, see DefaultEndpoints.
type Endpoints = config.Endpoints

// DefaultEndpoints derives every endpoint from the identity server base URL.
func DefaultEndpoints(baseURL, apiBaseURL string) Endpoints {
	return config.DefaultEndpoints(baseURL, apiBaseURL)
}

// Hub builds the services on first use and hands out the same instances afterwards.
// A service that cannot be built is reported as *autherr.DomainUnavailableError.
type Hub struct {
	client    *clients.Client
	endpoints Endpoints

	secure     storage.ValueStorage
	plain      storage.ValueStorage
	keys       keystore.KeyStore
	info       thisdevice.InfoProvider
	httpClient *http.Client

	maxTrusted         int
	cacheTTL           time.Duration
	persistentDeviceID bool

	device    *thisdevice.Repository
	tokens    *token.Store
	auth      *auth.AuthorizationService
	apiClient *http.Client
	devices   *devices.Service
	lock      sync.Mutex
}

// Option defines a function type to modify the Hub instance.
type Option func(*Hub)

// WithMaxTrustedDevices sets how many other devices may be trusted before a swap is required.
func WithMaxTrustedDevices(n int) Option {
	return func(h *Hub) {
		h.maxTrusted = n
	}
}

// WithDeviceCacheTTL sets how long the fetched device list is reused.
func WithDeviceCacheTTL(ttl time.Duration) Option {
	return func(h *Hub) {
		h.cacheTTL = ttl
	}
}

// WithPersistentDeviceID controls whether the device id survives restarts.
func WithPersistentDeviceID(persistent bool) Option {
	return func(h *Hub) {
		h.persistentDeviceID = persistent
	}
}

// WithKeyStore sets where quick login key pairs live.
func WithKeyStore(keys keystore.KeyStore) Option {
	return func(h *Hub) {
		h.keys = keys
	}
}

// WithStorage sets the secure store (tokens, registration id) and the plain
// store (device id, quick login flags).
func WithStorage(secure, plain storage.ValueStorage) Option {
	return func(h *Hub) {
		h.secure = secure
		h.plain = plain
	}
}

// WithDeviceInfo overrides the host description sent when registering this device.
func WithDeviceInfo(info thisdevice.InfoProvider) Option {
	return func(h *Hub) {
		h.info = info
	}
}

// WithEndpoints replaces the endpoints passed to NewHub, e.g. with discovered ones.
func WithEndpoints(endpoints Endpoints) Option {
	return func(h *Hub) {
		h.endpoints = endpoints
	}
}

// WithHTTPClient sets the client every request goes through.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Hub) {
		h.httpClient = c
	}
}

// NewHub checks the client identity and the token endpoint. No service is built until asked for.
func NewHub(client *clients.Client, endpoints Endpoints, options ...Option) (*Hub, error) {
	if client == nil {
		return nil, errors.New("[NewHub] client is required")
	}
	if client.ID == "" {
		return nil, errors.New("[NewHub] client id is required")
	}
	h := &Hub{
		client:             client,
		endpoints:          endpoints,
		maxTrusted:         1,
		cacheTTL:           5 * time.Minute,
		persistentDeviceID: true,
		httpClient:         &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range options {
		opt(h)
	}
	if h.endpoints.Token == "" {
		return nil, autherr.MalformedURL(h.endpoints.Token, errors.New("token endpoint is required"))
	}
	if h.secure == nil {
		h.secure = storage.NewMemory()
	}
	if h.plain == nil {
		h.plain = storage.NewMemory()
	}
	if h.keys == nil {
		h.keys = keystore.NewMemory()
	}
	return h, nil
}

// FromConfig builds a hub from environment configuration with the default endpoints.
func FromConfig(c config.Config, options ...Option) (*Hub, error) {
	base := []Option{
		WithMaxTrustedDevices(c.GetMaxTrustedDevices()),
		WithDeviceCacheTTL(c.GetDeviceCacheTTL()),
		WithPersistentDeviceID(c.GetPersistentDeviceID()),
		WithHTTPClient(&http.Client{Timeout: c.GetHTTPTimeout()}),
	}
	return NewHub(c.Client(), config.EndpointsFrom(c), append(base, options...)...)
}

// Client returns the client identity the hub was built with.
func (h *Hub) Client() *clients.Client {
	return h.client
}

// Endpoints returns the identity server URLs in use.
func (h *Hub) Endpoints() Endpoints {
	return h.endpoints
}

// ThisDevice returns the repository holding this install's ids.
func (h *Hub) ThisDevice() (*thisdevice.Repository, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	device, err := h.thisDeviceLocked()
	if err != nil {
		return nil, autherr.Unavailable(autherr.DomainDevices, err)
	}
	return device, nil
}

// Tokens returns the session's token store.
func (h *Hub) Tokens() (*token.Store, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	tokens, err := h.tokensLocked()
	if err != nil {
		return nil, autherr.Unavailable(autherr.DomainAuthorization, err)
	}
	return tokens, nil
}

// Authorization returns the service that logs in, refreshes and revokes.
func (h *Hub) Authorization() (*auth.AuthorizationService, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	service, err := h.authLocked()
	if err != nil {
		return nil, autherr.Unavailable(autherr.DomainAuthorization, err)
	}
	return service, nil
}

// HTTPClient returns a client that authenticates requests with the session's
// access token and refreshes it once on a 401.
func (h *Hub) HTTPClient() (*http.Client, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	client, err := h.apiClientLocked()
	if err != nil {
		return nil, autherr.Unavailable(autherr.DomainAccount, err)
	}
	return client, nil
}

// Devices returns the devices service.
func (h *Hub) Devices() (*devices.Service, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	service, err := h.devicesLocked()
	if err != nil {
		return nil, autherr.Unavailable(autherr.DomainDevices, err)
	}
	return service, nil
}

func (h *Hub) thisDeviceLocked() (*thisdevice.Repository, error) {
	if h.device != nil {
		return h.device, nil
	}
	device, err := thisdevice.NewRepository(h.plain, h.secure, h.info, thisdevice.WithPersistentDeviceID(h.persistentDeviceID))
	if err != nil {
		return nil, err
	}
	h.device = device
	return device, nil
}

func (h *Hub) tokensLocked() (*token.Store, error) {
	if h.tokens != nil {
		return h.tokens, nil
	}
	tokens, err := token.NewStore(token.WithPersistence(h.secure))
	if err != nil {
		return nil, err
	}
	h.tokens = tokens
	return tokens, nil
}

// deviceAuthRepo returns the device trust endpoints over httpClient.
func (h *Hub) deviceAuthRepo(httpClient *http.Client) (*httprepo.DeviceAuthRepo, error) {
	return httprepo.NewDeviceAuthRepo(httprepo.NewClient(httprepo.WithHTTPClient(httpClient)), httprepo.DeviceAuthURLs{
		Initialize: h.endpoints.DeviceInitialize,
		Authorize:  h.endpoints.DeviceAuthorize,
		Complete:   h.endpoints.DeviceComplete,
	})
}

// authLocked builds the authorization service on the unauthenticated client.
// Its calls must never go through the refreshing pipeline, which calls back into it.
func (h *Hub) authLocked() (*auth.AuthorizationService, error) {
	if h.auth != nil {
		return h.auth, nil
	}
	device, err := h.thisDeviceLocked()
	if err != nil {
		return nil, err
	}
	tokens, err := h.tokensLocked()
	if err != nil {
		return nil, err
	}

	tokenRepo, err := httprepo.NewTokenRepo(httprepo.NewClient(httprepo.WithHTTPClient(h.httpClient)), h.endpoints.Token, h.endpoints.Revocation)
	if err != nil {
		return nil, err
	}
	deviceAuth, err := h.deviceAuthRepo(h.httpClient)
	if err != nil {
		return nil, err
	}

	service, err := auth.NewAuthorizationService(
		auth.Repos{Tokens: tokenRepo, DeviceAuth: deviceAuth, Device: device, Keys: h.keys},
		h.client,
		tokens,
		auth.WithEndpoints(auth.Endpoints{Authorization: h.endpoints.Authorization, EndSession: h.endpoints.EndSession}),
	)
	if err != nil {
		return nil, err
	}
	h.auth = service
	log.Debug().Str("client_id", h.client.ID).Msg("Authorization service ready")
	return service, nil
}

func (h *Hub) apiClientLocked() (*http.Client, error) {
	if h.apiClient != nil {
		return h.apiClient, nil
	}
	service, err := h.authLocked()
	if err != nil {
		return nil, err
	}
	client, err := pipeline.NewClient(h.httpClient, service.Tokens(), service)
	if err != nil {
		return nil, err
	}
	h.apiClient = client
	return client, nil
}

func (h *Hub) devicesLocked() (*devices.Service, error) {
	if h.devices != nil {
		return h.devices, nil
	}
	service, err := h.authLocked()
	if err != nil {
		return nil, err
	}
	apiClient, err := h.apiClientLocked()
	if err != nil {
		return nil, err
	}

	devicesRepo, err := httprepo.NewDevicesRepo(httprepo.NewClient(httprepo.WithHTTPClient(apiClient)), h.endpoints.APIBase)
	if err != nil {
		return nil, err
	}
	deviceAuth, err := h.deviceAuthRepo(apiClient)
	if err != nil {
		return nil, err
	}

	s, err := devices.NewService(
		devices.Repos{
			Devices:    devicesRepo,
			DeviceAuth: deviceAuth,
			Device:     h.device,
			Keys:       h.keys,
			Values:     h.plain,
		},
		h.client,
		service,
		devices.WithMaxTrustedDevices(h.maxTrusted),
		devices.WithCacheTTL(h.cacheTTL),
	)
	if err != nil {
		return nil, err
	}
	h.devices = s
	return s, nil
}
