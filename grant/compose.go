package grant

import (
	"github.com/jrsteele09/go-identity-client/clients"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/jrsteele09/go-identity-client/thisdevice"
)

// composed is a base grant plus ordered overlays.
type composed struct {
	base     Grant
	overlays []Params
}

// Compose layers overlays onto base. Later overlays win over earlier ones;
// no overlay can replace a field the base already sets.
func Compose(base Grant, overlays ...Params) Grant {
	if c, ok := base.(*composed); ok {
		all := make([]Params, 0, len(c.overlays)+len(overlays))
		all = append(all, c.overlays...)
		return &composed{base: c.base, overlays: append(all, overlays...)}
	}
	return &composed{base: base, overlays: overlays}
}

func (c *composed) GrantType() oauth2.GrantType { return c.base.GrantType() }
func (c *composed) IsUserGrant() bool           { return c.base.IsUserGrant() }

func (c *composed) Params() Params {
	base := c.base.Params()
	out := append(Params(nil), base...)
	for _, overlay := range c.overlays {
		for _, kv := range overlay {
			if _, fromBase := base.Get(kv.Key); fromBase {
				continue
			}
			out = out.set(kv.Key, kv.Value)
		}
	}
	return out
}

// Base returns the undecorated grant.
func Base(g Grant) Grant {
	if c, ok := g.(*composed); ok {
		return c.base
	}
	return g
}

// WithClient adds client_id, client_secret and the scope matching the grant kind.
func WithClient(g Grant, client *clients.Client) Grant {
	return Compose(g, params(
		"client_id", client.ID,
		"client_secret", client.Secret,
		"scope", client.Scope(g.IsUserGrant()),
	))
}

// WithDeviceIDs adds device_id and, once registered, registration_id.
func WithDeviceIDs(g Grant, ids thisdevice.IDs) Grant {
	return Compose(g, params("device_id", ids.Device, "registration_id", ids.Registration))
}

// WithAuthorizationDetails adds an RFC 9396 authorization_details JSON payload.
func WithAuthorizationDetails(g Grant, details string) Grant {
	return Compose(g, params("authorization_details", details))
}
