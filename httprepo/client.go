// Package httprepo implements the repository interfaces over the identity
// server's HTTP API.
package httprepo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-identity-client/autherr"
	"github.com/pkg/errors"
)

const (
	contentTypeForm = "application/x-www-form-urlencoded; charset=utf-8"
	contentTypeJSON = "application/json"
	maxErrorBody    = 64 << 10
)

// Client sends requests and maps non 2xx responses to *autherr.APIError.
type Client struct {
	http      *http.Client
	userAgent string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: "go-identity-client",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	method      string
	url         string
	body        []byte
	contentType string
	header      http.Header
}

func formRequest(endpoint string, form url.Values) request {
	return request{
		method:      http.MethodPost,
		url:         endpoint,
		body:        []byte(form.Encode()),
		contentType: contentTypeForm,
	}
}

func jsonRequest(method, endpoint string, body any) (request, error) {
	req := request{method: method, url: endpoint}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return request{}, errors.Wrap(err, "[httprepo] encode request")
		}
		req.body = data
		req.contentType = contentTypeJSON
	}
	return req, nil
}

// do sends r and decodes a JSON response into out when out is not nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var body io.Reader = http.NoBody
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return errors.Wrapf(err, "[httprepo] %s %s", r.method, r.url)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range r.header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "[httprepo] %s %s", r.method, r.url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "[httprepo] decode %s response", r.url)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return autherr.NewAPIError(resp.StatusCode, body)
}

// joinPath appends escaped segments to base.
func joinPath(base string, segments ...string) string {
	out := strings.TrimRight(base, "/")
	for _, s := range segments {
		out += "/" + url.PathEscape(s)
	}
	return out
}
