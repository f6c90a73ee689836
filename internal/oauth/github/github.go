// Package github implements the GitHub OAuth2 adapter.
// Unlike OIDC providers, GitHub has no ID token and may hide the user's
// email, requiring a separate call to /user/emails.
package github

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
)

const (
	ProviderName = "github"

	Issuer        = "https://github.com"
	AuthEndpoint  = "https://github.com/login/oauth/authorize"
	TokenEndpoint = "https://github.com/login/oauth/access_token"
	UserEndpoint  = "https://api.github.com/user"
	EmailEndpoint = "https://api.github.com/user/emails"
	DefaultScope  = "read:user user:email"
)

// EmailInfo es una entrada de /user/emails.
type EmailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Adapter es el adapter de GitHub.
type Adapter struct {
	oauth.Base
}

// New crea el adapter.
func New(hc *http.Client) *Adapter {
	return &Adapter{Base: oauth.NewBase(ProviderName, hc)}
}

// FetchProfile trae /user y, si no trae email, hace exactamente un request
// extra a /user/emails. Un fallo en ese request no aborta el login.
func (a *Adapter) FetchProfile(ctx context.Context, rc *oauth.ResolvedClient, tok *oauth.TokenSet) (map[string]any, error) {
	raw, err := a.Base.FetchProfile(ctx, rc, tok)
	if err != nil {
		return nil, err
	}
	if oauth.StringField(raw, "email") != "" {
		return raw, nil
	}

	endpoint := rc.Config.EmailsEndpoint
	if endpoint == "" {
		endpoint = EmailEndpoint
	}

	var emails []EmailInfo
	if err := a.GetJSON(ctx, "emails", endpoint, tok.AccessToken, &emails); err != nil {
		logger.From(ctx).Warn("github emails lookup failed",
			logger.Component("oauth.github"),
			logger.Op("FetchProfile"),
			logger.Err(err),
		)
		return raw, nil
	}
	if e, ok := SelectEmail(emails); ok {
		raw["email"] = e.Email
	}
	return raw, nil
}

// SelectEmail elige primary+verified, luego primary, luego la primera.
func SelectEmail(emails []EmailInfo) (EmailInfo, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e, true
		}
	}
	for _, e := range emails {
		if e.Primary {
			return e, true
		}
	}
	if len(emails) > 0 {
		return emails[0], true
	}
	return EmailInfo{}, false
}

// Normalize mapea el perfil de /user.
func (a *Adapter) Normalize(raw map[string]any) oauth.NormalizedUser {
	return oauth.NormalizedUser{
		ID:         oauth.ProfileID(raw),
		Provider:   ProviderName,
		Username:   oauth.StringField(raw, "login"),
		Email:      oauth.OptionalString(raw, "email"),
		AvatarURL:  oauth.OptionalString(raw, "avatar_url"),
		RawProfile: raw,
	}
}
