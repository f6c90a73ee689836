// Package google implements the Google OIDC adapter. Endpoints come from
// discovery of https://accounts.google.com.
package google

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/socialauth/internal/oauth"
)

const (
	ProviderName = "google"

	Issuer       = "https://accounts.google.com"
	DefaultScope = "openid profile email"
)

// Adapter es el adapter de Google.
type Adapter struct {
	oauth.Base
}

// New crea el adapter.
func New(hc *http.Client) *Adapter {
	return &Adapter{Base: oauth.NewBase(ProviderName, hc)}
}

// AuthorizationParams agrega include_granted_scopes a los parámetros base.
func (a *Adapter) AuthorizationParams(rc *oauth.ResolvedClient, state, codeChallenge string) url.Values {
	q := a.Base.AuthorizationParams(rc, state, codeChallenge)
	q.Set("include_granted_scopes", "true")
	return q
}

// Normalize mapea las claims de userinfo. Sin name ni given_name, el
// username es la parte local del email.
func (a *Adapter) Normalize(raw map[string]any) oauth.NormalizedUser {
	username := oauth.FirstString(raw, "name", "given_name")
	if username == "" {
		if email := oauth.StringField(raw, "email"); email != "" {
			username, _, _ = strings.Cut(email, "@")
		}
	}
	return oauth.NormalizedUser{
		ID:         oauth.ProfileID(raw),
		Provider:   ProviderName,
		Username:   username,
		Email:      oauth.OptionalString(raw, "email"),
		AvatarURL:  oauth.OptionalString(raw, "picture"),
		RawProfile: raw,
	}
}
