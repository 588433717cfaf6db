// Package pipeline authenticates outgoing API calls with the session's access
// token and recovers once from an expired token.
package pipeline

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Refresher renews the session tokens.
type Refresher interface {
	RefreshTokens(ctx context.Context) error
}

// Transport sets the Authorization header from Source. A 401 response triggers
// a single refresh followed by a single retry of the request. Concurrent
// requests rejected with the same token share one refresh.
type Transport struct {
	Base      http.RoundTripper
	Source    xoauth2.TokenSource
	Refresher Refresher

	group singleflight.Group
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper, source xoauth2.TokenSource, refresher Refresher) (*Transport, error) {
	if source == nil {
		return nil, errors.New("[NewTransport] token source is required")
	}
	if refresher == nil {
		return nil, errors.New("[NewTransport] refresher is required")
	}
	return &Transport{Base: base, Source: source, Refresher: refresher}, nil
}

// NewClient returns an *http.Client using a Transport over base's transport.
func NewClient(base *http.Client, source xoauth2.TokenSource, refresher Refresher) (*http.Client, error) {
	if base == nil {
		base = http.DefaultClient
	}
	t, err := NewTransport(base.Transport, source, refresher)
	if err != nil {
		return nil, err
	}
	client := *base
	client.Transport = t
	return &client, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	sent, err := t.send(req, getBody)
	if err != nil {
		return nil, err
	}
	if sent.resp.StatusCode != http.StatusUnauthorized {
		return sent.resp, nil
	}

	if err := t.refresh(req.Context(), sent.accessToken); err != nil {
		log.Err(err).Str("url", req.URL.Redacted()).Msg("Token refresh after 401 failed")
		return sent.resp, nil
	}
	drain(sent.resp)

	log.Debug().Str("url", req.URL.Redacted()).Msg("Retrying request with refreshed token")
	retry, err := t.send(req, getBody)
	if err != nil {
		return nil, err
	}
	return retry.resp, nil
}

type attempt struct {
	resp        *http.Response
	accessToken string
}

func (t *Transport) send(req *http.Request, getBody func() (io.ReadCloser, error)) (attempt, error) {
	out := req.Clone(req.Context())
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return attempt{}, errors.Wrap(err, "[Transport.send] body")
		}
		out.Body = body
	}

	var accessToken string
	tok, err := t.Source.Token()
	if err == nil && tok.AccessToken != "" {
		tok.SetAuthHeader(out)
		accessToken = tok.AccessToken
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return attempt{}, err
	}
	return attempt{resp: resp, accessToken: accessToken}, nil
}

// refresh renews the tokens unless the current access token is no longer the
// rejected one, in which case another request already did.
func (t *Transport) refresh(ctx context.Context, rejected string) error {
	_, err, _ := t.group.Do(rejected, func() (any, error) {
		if tok, err := t.Source.Token(); err == nil && tok.AccessToken != rejected {
			return nil, nil
		}
		return nil, t.Refresher.RefreshTokens(context.WithoutCancel(ctx))
	})
	return err
}

// replayableBody returns a function producing fresh copies of the request
// body, buffering it when the request cannot rewind itself. The original body
// is always closed.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	if req.GetBody != nil {
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[pipeline] read request body")
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
