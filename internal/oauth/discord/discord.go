// Package discord implements the Discord OAuth2 adapter.
// Discord is OAuth2-only: endpoints are static and the profile comes from
// /users/@me.
package discord

import (
	"fmt"
	"net/http"

	"github.com/dropDatabas3/socialauth/internal/oauth"
)

const (
	ProviderName = "discord"

	Issuer        = "https://discord.com"
	AuthEndpoint  = "https://discord.com/oauth2/authorize"
	TokenEndpoint = "https://discord.com/api/oauth2/token"
	UserEndpoint  = "https://discord.com/api/users/@me"
	DefaultScope  = "identify email"

	cdnAvatarURL = "https://cdn.discordapp.com/avatars/%s/%s.png"
)

// Adapter es el adapter de Discord.
type Adapter struct {
	oauth.Base
}

// New crea el adapter.
func New(hc *http.Client) *Adapter {
	return &Adapter{Base: oauth.NewBase(ProviderName, hc)}
}

// Normalize mapea el perfil de /users/@me. El avatar es un hash que se
// expande a la URL del CDN.
func (a *Adapter) Normalize(raw map[string]any) oauth.NormalizedUser {
	id := oauth.ProfileID(raw)

	var avatar *string
	if hash := oauth.StringField(raw, "avatar"); hash != "" {
		s := fmt.Sprintf(cdnAvatarURL, id, hash)
		avatar = &s
	}

	return oauth.NormalizedUser{
		ID:         id,
		Provider:   ProviderName,
		Username:   oauth.StringField(raw, "username"),
		Email:      oauth.OptionalString(raw, "email"),
		AvatarURL:  avatar,
		RawProfile: raw,
	}
}
