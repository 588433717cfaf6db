// Package token holds the current token set for a session.
package token

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jrsteele09/go-identity-client/internal/utils"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/jrsteele09/go-identity-client/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
)

const (
	recordKey       = "token_record"
	accessTokenKey  = "token_access"
	refreshTokenKey = "token_refresh"
	idTokenKey      = "token_id"

	defaultTokenType = "Bearer"
)

var (
	// ErrNoToken is returned by Token when nothing is stored.
	ErrNoToken = errors.New("token: no access token")
	// ErrInvalidResponse is returned by Parse for a response without an access token.
	ErrInvalidResponse = errors.New("token: response has no access token")
)

// Record is an immutable snapshot of the token set.
type Record struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Raw          oauth2.TokenResponse
	IssuedAt     time.Time
}

// IsEmpty reports whether no access token is held.
func (r Record) IsEmpty() bool {
	return r.AccessToken == ""
}

// Authorization returns "<type> <access token>", or "" when empty.
func (r Record) Authorization() string {
	if r.IsEmpty() {
		return ""
	}
	return r.Raw.Authorization()
}

// Store replaces the whole record under one lock so readers never see a
// half written token set.
type Store struct {
	record  Record
	persist storage.ValueStorage
	nowTime func() time.Time
	lock    sync.RWMutex
}

var _ xoauth2.TokenSource = (*Store)(nil)

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithPersistence mirrors the record into s so it survives restarts. Each
// token is stored under its own key, split into pieces small enough for an
// OS keyring.
func WithPersistence(s storage.ValueStorage) StoreOption {
	return func(st *Store) {
		st.persist = s
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(st *Store) {
		st.nowTime = nowFunc
	}
}

// persistedRecord is everything but the tokens themselves.
type persistedRecord struct {
	TokenType string    `json:"tokenType"`
	ExpiresIn int       `json:"expiresIn,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// NewStore creates a store, restoring a persisted record when one exists.
func NewStore(options ...StoreOption) (*Store, error) {
	s := &Store{nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	if s.persist == nil {
		return s, nil
	}

	record, err := s.restore()
	if err != nil {
		return nil, errors.Wrap(err, "[NewStore]")
	}
	s.record = record
	return s, nil
}

func (s *Store) restore() (Record, error) {
	data, err := storage.ReadOptional(s.persist, recordKey)
	if err != nil {
		return Record{}, errors.Wrap(err, "read persisted token")
	}
	if data == "" {
		return Record{}, nil
	}
	var p persistedRecord
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Record{}, errors.Wrap(err, "decode persisted token")
	}

	resp := oauth2.TokenResponse{TokenType: p.TokenType, ExpiresIn: p.ExpiresIn, Scope: p.Scope}
	if resp.AccessToken, err = storage.ReadChunked(s.persist, accessTokenKey); err != nil {
		return Record{}, errors.Wrap(err, "read access token")
	}
	if resp.AccessToken == "" {
		return Record{}, nil
	}
	for key, dst := range map[string]**string{refreshTokenKey: &resp.RefreshToken, idTokenKey: &resp.IdToken} {
		v, err := storage.ReadChunked(s.persist, key)
		if err != nil {
			return Record{}, errors.Wrapf(err, "read %s", key)
		}
		if v != "" {
			*dst = utils.Ptr(v)
		}
	}
	return newRecord(resp, p.IssuedAt), nil
}

func newRecord(resp oauth2.TokenResponse, issuedAt time.Time) Record {
	return Record{
		AccessToken:  resp.AccessToken,
		RefreshToken: utils.Deref(resp.RefreshToken),
		IDToken:      utils.Deref(resp.IdToken),
		TokenType:    resp.TokenType,
		Raw:          resp,
		IssuedAt:     issuedAt,
	}
}

// Parse replaces the stored record with resp. A response without an access
// token is rejected and the previous record kept. A missing token type is
// read as Bearer. Failing to persist the record is logged, not returned: the
// server has already issued the tokens.
func (s *Store) Parse(resp oauth2.TokenResponse) error {
	if resp.AccessToken == "" {
		return ErrInvalidResponse
	}
	if resp.TokenType == "" {
		resp.TokenType = defaultTokenType
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.record = newRecord(resp, s.nowTime())
	if s.persist == nil {
		return nil
	}
	if err := s.save(s.record); err != nil {
		log.Error().Err(err).Msg("Token set kept in memory only")
		if err := s.clearPersisted(); err != nil {
			log.Error().Err(err).Msg("Failed to clear partially persisted token set")
		}
	}
	return nil
}

// save drops the record key first and writes it last, so an interrupted
// save restores as logged out rather than as a mix of two token sets.
func (s *Store) save(r Record) error {
	if err := s.persist.ClearValue(recordKey); err != nil {
		return errors.Wrap(err, "[Store.save] clear")
	}
	tokens := []struct{ key, value string }{
		{accessTokenKey, r.AccessToken},
		{refreshTokenKey, r.RefreshToken},
		{idTokenKey, r.IDToken},
	}
	for _, t := range tokens {
		if err := storage.StoreChunked(s.persist, t.key, t.value); err != nil {
			return errors.Wrapf(err, "[Store.save] %s", t.key)
		}
	}
	data, err := json.Marshal(persistedRecord{
		TokenType: r.TokenType,
		ExpiresIn: r.Raw.ExpiresIn,
		Scope:     r.Raw.Scope,
		IssuedAt:  r.IssuedAt,
	})
	if err != nil {
		return errors.Wrap(err, "[Store.save] encode")
	}
	return errors.Wrap(s.persist.StoreValue(recordKey, string(data)), "[Store.save] record")
}

func (s *Store) clearPersisted() error {
	var firstErr error
	if err := s.persist.ClearValue(recordKey); err != nil {
		firstErr = err
	}
	for _, key := range []string{accessTokenKey, refreshTokenKey, idTokenKey} {
		if err := storage.ClearChunked(s.persist, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Clear drops every field. The in-memory record is cleared even when the
// persisted copy cannot be removed.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.record = Record{}
	if s.persist != nil {
		return s.clearPersisted()
	}
	return nil
}

// Current returns a snapshot of the record.
func (s *Store) Current() Record {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.record
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*xoauth2.Token, error) {
	r := s.Current()
	if r.IsEmpty() {
		return nil, ErrNoToken
	}
	return r.Raw.ToOAuth2Token(r.IssuedAt), nil
}
