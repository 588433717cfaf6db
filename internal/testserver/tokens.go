package testserver

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/pkg/errors"
)

// hmacSigner signs access tokens with HS256.
type hmacSigner struct {
	secret []byte
}

func newHMACSigner(secret string) *hmacSigner {
	return &hmacSigner{secret: []byte(secret)}
}

func (h *hmacSigner) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signedToken, nil
}

func (h *hmacSigner) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

type refreshToken struct {
	subject string
	scope   string
}

// Revocation records one call to the revocation endpoint.
type Revocation struct {
	Token     string
	Hint      string
	BasicAuth string
}

type issueRequest struct {
	subject          string
	scope            string
	otpAuthenticated bool
	withRefresh      bool
}

func (s *Server) issue(req issueRequest) (oauth2.TokenResponse, error) {
	now := s.nowFunc()
	jti := uuid.NewString()
	exp := now.Add(s.accessTTL)
	claims := jwt.MapClaims{
		"iss":       s.Issuer(),
		"sub":       req.subject,
		"aud":       s.Issuer() + "/resources",
		"client_id": s.clientID,
		"scope":     req.scope,
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
		"jti":       jti,
	}
	if req.otpAuthenticated {
		claims["otp_authenticated"] = true
	}
	access, err := s.signer.Sign(claims)
	if err != nil {
		return oauth2.TokenResponse{}, err
	}

	s.issued[jti] = exp
	resp := oauth2.TokenResponse{
		AccessToken: access,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		TokenType:   "Bearer",
		Scope:       req.scope,
	}
	if req.withRefresh {
		value := randomHex()
		s.refreshTokens[value] = refreshToken{subject: req.subject, scope: req.scope}
		resp.RefreshToken = &value
	}
	return resp, nil
}

func randomHex() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Server) verifyAccessToken(raw string) (jwt.MapClaims, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.verifyAccessTokenLocked(raw)
}

// ExpireAccessTokens revokes every access token issued so far, as if they had
// all reached their expiry. Refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for jti, exp := range s.issued {
		s.revoked[jti] = exp
	}
}

// GrantCount returns how many successful token requests used grantType.
func (s *Server) GrantCount(grantType oauth2.GrantType) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.grantCounts[string(grantType)]
}

func (s *Server) Revocations() []Revocation {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Revocation(nil), s.revocations...)
}

// UserID returns the subject issued for username.
func (s *Server) UserID(username string) string {
	return s.users[username].id
}

func (s *Server) clientAuthenticated(r *http.Request) bool {
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	return id == s.clientID && secret == s.clientSecret
}

// Token serves every grant the client sends.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if !s.clientAuthenticated(r) {
			writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
			return
		}

		s.lock.Lock()
		defer s.lock.Unlock()

		grantType := r.PostForm.Get("grant_type")
		scope := r.PostForm.Get("scope")
		var req issueRequest
		switch oauth2.GrantType(grantType) {
		case oauth2.PasswordGrant:
			u, ok := s.users[r.PostForm.Get("username")]
			if !ok || u.password != r.PostForm.Get("password") {
				writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "invalid username or password")
				return
			}
			req = issueRequest{subject: u.id, scope: scope}

		case oauth2.RefreshTokenGrant:
			value := r.PostForm.Get("refresh_token")
			rt, ok := s.refreshTokens[value]
			if !ok {
				writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "unknown refresh token")
				return
			}
			delete(s.refreshTokens, value)
			req = issueRequest{subject: rt.subject, scope: rt.scope, withRefresh: true}

		case oauth2.ClientCredentialsGrant:
			req = issueRequest{subject: s.clientID, scope: scope}

		case oauth2.OtpAuthenticateGrant:
			claims, err := s.verifyAccessTokenLocked(r.PostForm.Get("token"))
			if err != nil {
				writeOAuthError(w, http.StatusBadRequest, "invalid_grant", err.Error())
				return
			}
			if r.PostForm.Get("otp") != s.otp {
				writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "invalid otp")
				return
			}
			sub, _ := claims.GetSubject()
			req = issueRequest{subject: sub, scope: scope, otpAuthenticated: true}

		case oauth2.DeviceAuthenticationGrant:
			sub, err := s.authenticateDevice(r)
			if err != nil {
				writeOAuthError(w, http.StatusBadRequest, "invalid_grant", err.Error())
				return
			}
			req = issueRequest{subject: sub, scope: scope}

		default:
			writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", grantType)
			return
		}

		if !req.withRefresh {
			req.withRefresh = oauth2.GrantType(grantType) != oauth2.ClientCredentialsGrant && hasScope(req.scope, "offline_access")
		}
		resp, err := s.issue(req)
		if err != nil {
			writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		s.grantCounts[grantType]++
		writeJSON(w, http.StatusOK, resp)
	}
}

// verifyAccessTokenLocked is verifyAccessToken for callers already holding s.lock.
func (s *Server) verifyAccessTokenLocked(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.signer.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.nowFunc),
	)
	if err != nil {
		return nil, err
	}
	jti, _ := claims["jti"].(string)
	if _, revoked := s.revoked[jti]; revoked {
		return nil, errors.New("token revoked")
	}
	return claims, nil
}

// Revoke drops refresh tokens and marks access tokens revoked. Unknown tokens
// are accepted as RFC 7009 requires.
func (s *Server) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		basic := r.Header.Get("Authorization")
		if !s.clientAuthenticated(r) {
			writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
			return
		}

		value := r.PostForm.Get("token")
		hint := r.PostForm.Get("tokenTypeHint")

		s.lock.Lock()
		defer s.lock.Unlock()
		s.revocations = append(s.revocations, Revocation{Token: value, Hint: hint, BasicAuth: basic})
		delete(s.refreshTokens, value)
		if claims, err := s.verifyAccessTokenLocked(value); err == nil {
			if jti, ok := claims["jti"].(string); ok {
				s.revoked[jti] = time.Now()
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

func hasScope(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}

// BasicAuth returns the Authorization header the server expects from the client.
func (s *Server) BasicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(s.clientID+":"+s.clientSecret))
}
