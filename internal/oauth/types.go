package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ProviderConfig es la configuración estática de un provider.
// Un endpoint vacío significa "resolver vía discovery".
type ProviderConfig struct {
	ID                    string
	Issuer                string
	AuthorizationEndpoint string
	TokenEndpoint         string
	UserInfoEndpoint      string
	EmailsEndpoint        string // solo GitHub-style: /user/emails

	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string // separado por espacios

	Enabled  bool
	Optional bool // si faltan credenciales se deshabilita en vez de abortar el arranque
}

// NeedsDiscovery reporta si algún endpoint requerido está vacío.
func (c ProviderConfig) NeedsDiscovery() bool {
	return c.AuthorizationEndpoint == "" || c.TokenEndpoint == "" || c.UserInfoEndpoint == ""
}

// Scopes devuelve Scope separado en campos.
func (c ProviderConfig) Scopes() []string {
	return strings.Fields(c.Scope)
}

// ResolvedClient es la configuración lista para usar: config + endpoints
// resueltos. Lo construye Factory una vez por provider y no se muta después.
type ResolvedClient struct {
	Config ProviderConfig

	AuthURL     string
	TokenURL    string
	UserInfoURL string
	JWKSURI     string

	Discovered bool
	ResolvedAt time.Time
}

// ID es un atajo a Config.ID.
func (c *ResolvedClient) ID() string { return c.Config.ID }

// OAuth2Config arma el *oauth2.Config para el token exchange.
// Las credenciales van en el body del POST (client_secret_post); todos los
// providers soportados lo aceptan y evita el doble request de AutoDetect.
func (c *ResolvedClient) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.Config.ClientID,
		ClientSecret: c.Config.ClientSecret,
		RedirectURL:  c.Config.RedirectURI,
		Scopes:       c.Config.Scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// TokenSet son los tokens devueltos por el token endpoint.
type TokenSet struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
}

// NormalizedUser es el perfil canónico, independiente del provider.
type NormalizedUser struct {
	ID         string         `json:"id"`
	Provider   string         `json:"provider"`
	Username   string         `json:"username"`
	Email      *string        `json:"email"`
	AvatarURL  *string        `json:"avatar"`
	RawProfile map[string]any `json:"raw"`
}
