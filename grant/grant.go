// Package grant builds the form parameters sent to the token endpoint.
//
// A base Grant carries only its own fields. Client identity, device ids and
// authorization details are layered on with the With* decorators, which return
// a new Grant and never modify or override the base.
package grant

import (
	"net/url"

	"github.com/jrsteele09/go-identity-client/oauth2"
)

// Param is one form field.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list with unique keys.
type Params []Param

// Get returns the value for key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Keys lists keys in order.
func (p Params) Keys() []string {
	keys := make([]string, len(p))
	for i, kv := range p {
		keys[i] = kv.Key
	}
	return keys
}

// Values converts to form values.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for _, kv := range p {
		v.Set(kv.Key, kv.Value)
	}
	return v
}

// Encode returns the form encoded body.
func (p Params) Encode() string {
	return p.Values().Encode()
}

// set replaces key in place or appends it. Empty values are ignored.
func (p Params) set(key, value string) Params {
	if value == "" {
		return p
	}
	for i := range p {
		if p[i].Key == key {
			p[i].Value = value
			return p
		}
	}
	return append(p, Param{Key: key, Value: value})
}

func params(kv ...string) Params {
	var p Params
	for i := 0; i+1 < len(kv); i += 2 {
		p = p.set(kv[i], kv[i+1])
	}
	return p
}

// Grant is a token endpoint request.
type Grant interface {
	GrantType() oauth2.GrantType
	// Params includes grant_type. Empty fields are omitted.
	Params() Params
	// IsUserGrant is false for grants that authenticate only the client.
	IsUserGrant() bool
}
