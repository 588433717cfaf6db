// Package testserver is an in-process identity server speaking the token,
// revocation, device trust and device management protocols the client uses.
// Tests start one per case.
package testserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-identity-client/devices"
)

const (
	DefaultClientID     = "mobile-app"
	DefaultClientSecret = "mobile-secret"
	DefaultUsername     = "john.doe@example.com"
	DefaultPassword     = "password123"
	DefaultOtp          = "123456"
)

type user struct {
	id       string
	password string
}

// Server is the fake identity server. Its zero value is not usable; call Start.
type Server struct {
	*httptest.Server

	mux    *http.ServeMux
	routes []string
	signer *hmacSigner

	clientID     string
	clientSecret string
	otp          string
	maxTrusted   int
	accessTTL    time.Duration
	nowFunc      func() time.Time
	users        map[string]user

	lock          sync.Mutex
	issued        map[string]time.Time // access token jti -> expiry
	revoked       map[string]time.Time
	refreshTokens map[string]refreshToken
	challenges    map[string]pendingChallenge
	registrations map[string]registration
	devices       map[string][]devices.DeviceInfo // by subject
	grantCounts   map[string]int
	revocations   []Revocation
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

func WithClient(id, secret string) Option {
	return func(s *Server) {
		s.clientID = id
		s.clientSecret = secret
	}
}

// WithUser adds a password user.
func WithUser(username, password string) Option {
	return func(s *Server) {
		s.users[username] = user{id: uuid.NewString(), password: password}
	}
}

func WithOtp(otp string) Option {
	return func(s *Server) {
		s.otp = otp
	}
}

// WithMaxTrustedDevices makes trust requests fail with 400 when no swap is
// offered and the other trusted devices are at n.
func WithMaxTrustedDevices(n int) Option {
	return func(s *Server) {
		s.maxTrusted = n
	}
}

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// Start serves a new identity server on a loopback address.
func Start(options ...Option) *Server {
	s := &Server{
		mux:           http.NewServeMux(),
		signer:        newHMACSigner(uuid.NewString()),
		clientID:      DefaultClientID,
		clientSecret:  DefaultClientSecret,
		otp:           DefaultOtp,
		maxTrusted:    1,
		accessTTL:     time.Hour,
		nowFunc:       time.Now,
		users:         make(map[string]user),
		issued:        make(map[string]time.Time),
		revoked:       make(map[string]time.Time),
		refreshTokens: make(map[string]refreshToken),
		challenges:    make(map[string]pendingChallenge),
		registrations: make(map[string]registration),
		devices:       make(map[string][]devices.DeviceInfo),
		grantCounts:   make(map[string]int),
	}
	WithUser(DefaultUsername, DefaultPassword)(s)
	for _, opt := range options {
		opt(s)
	}
	s.initRoutes()
	s.Server = httptest.NewServer(s.mux)
	return s
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Issuer is the base URL every endpoint hangs off.
func (s *Server) Issuer() string {
	return s.URL
}

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.Issuer()
		writeJSON(w, http.StatusOK, map[string]any{
			"issuer":                 baseURL,
			"authorization_endpoint": baseURL + RouteAuthorize,
			"token_endpoint":         baseURL + RouteToken,
			"userinfo_endpoint":      baseURL + RouteUserInfo,
			"jwks_uri":               baseURL + RouteWellKnownJWKS,
			"revocation_endpoint":    baseURL + RouteRevocation,
			"end_session_endpoint":   baseURL + RouteEndSession,

			"response_types_supported":              []string{"code", "code id_token"},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{"RS256"},
			"scopes_supported":                      []string{"openid", "profile", "email", "offline_access", "identity"},
			"grant_types_supported": []string{
				"authorization_code",
				"refresh_token",
				"client_credentials",
				"password",
				"otp_authenticate",
				"device_authentication",
			},
			"code_challenge_methods_supported": []string{"S256"},
		})
	}
}

// UserInfo returns the subject of the bearer token.
func (s *Server) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"sub": subject(r)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

// writeOAuthError answers like an RFC 6749 token endpoint.
func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": description})
}
