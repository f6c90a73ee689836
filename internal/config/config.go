package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/dropDatabas3/socialauth/internal/oauth/discord"
	"github.com/dropDatabas3/socialauth/internal/oauth/github"
	"github.com/dropDatabas3/socialauth/internal/oauth/google"
	"gopkg.in/yaml.v3"
)

// DevSessionSecret se usa fuera de prod cuando no hay secret configurado.
const DevSessionSecret = "dev-insecure-session-secret"

type Config struct {
	App struct {
		// dev | staging | prod
		Env         string `yaml:"app_env"`
		ServiceName string `yaml:"service_name"`
		Version     string `yaml:"version"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr              string `yaml:"addr"`
		BasePath          string `yaml:"base_path"`
		PostLoginRedirect string `yaml:"post_login_redirect"`
		SecureCookies     *bool  `yaml:"secure_cookies"` // nil = true solo en prod
	} `yaml:"server"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Session struct {
		Secret     string `yaml:"secret"`
		TTL        string `yaml:"ttl"` // acepta sufijo "d"
		Issuer     string `yaml:"issuer"`
		CookieName string `yaml:"cookie_name"`
	} `yaml:"session"`

	OAuth struct {
		StateTTL         string `yaml:"state_ttl"`
		StateCookieName  string `yaml:"state_cookie_name"`
		HTTPTimeout      string `yaml:"http_timeout"`
		DiscoveryTimeout string `yaml:"discovery_timeout"`
	} `yaml:"oauth"`

	// Providers por id. discord, github y google traen defaults; cualquier
	// otro id usa el adapter genérico.
	Providers map[string]Provider `yaml:"providers"`
}

// Provider es la configuración YAML/env de un provider.
type Provider struct {
	Enabled               *bool  `yaml:"enabled"`
	Optional              bool   `yaml:"optional"`
	Issuer                string `yaml:"issuer"`
	AuthorizationEndpoint string `yaml:"authorization_endpoint"`
	TokenEndpoint         string `yaml:"token_endpoint"`
	UserInfoEndpoint      string `yaml:"userinfo_endpoint"`
	EmailsEndpoint        string `yaml:"emails_endpoint"`
	ClientID              string `yaml:"client_id"`
	ClientSecret          string `yaml:"client_secret"`
	RedirectURI           string `yaml:"redirect_uri"`
	Scope                 string `yaml:"scope"`
}

// Load lee el YAML (si path no es vacío), aplica defaults y overrides de env.
// Un path inexistente no es error: la config sale solo de env + defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.ServiceName == "" {
		c.App.ServiceName = "socialauth"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/api/auth"
	}
	if c.Server.PostLoginRedirect == "" {
		c.Server.PostLoginRedirect = "http://localhost:5500/"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "socialauth"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "7d"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "auth_token"
	}
	if c.Session.Secret == "" && !c.IsProd() {
		c.Session.Secret = DevSessionSecret
	}
	if c.OAuth.StateTTL == "" {
		c.OAuth.StateTTL = "10m"
	}
	if c.OAuth.StateCookieName == "" {
		c.OAuth.StateCookieName = "oauth_state"
	}
	if c.OAuth.HTTPTimeout == "" {
		c.OAuth.HTTPTimeout = "10s"
	}
	if c.OAuth.DiscoveryTimeout == "" {
		c.OAuth.DiscoveryTimeout = "10s"
	}

	if c.Providers == nil {
		c.Providers = map[string]Provider{}
	}
	for id, def := range builtinProviders() {
		p := c.Providers[id]
		mergeProvider(&p, def)
		c.Providers[id] = p
	}
	for id, p := range c.Providers {
		if p.Enabled == nil {
			t := true
			p.Enabled = &t
		}
		if p.RedirectURI == "" {
			p.RedirectURI = defaultRedirect(c.Server.Addr, c.Server.BasePath, id)
		}
		c.Providers[id] = p
	}
}

// builtinProviders es la tabla de endpoints conocidos. Google se resuelve
// por discovery (endpoints vacíos).
func builtinProviders() map[string]Provider {
	return map[string]Provider{
		discord.ProviderName: {
			Issuer:                discord.Issuer,
			AuthorizationEndpoint: discord.AuthEndpoint,
			TokenEndpoint:         discord.TokenEndpoint,
			UserInfoEndpoint:      discord.UserEndpoint,
			Scope:                 discord.DefaultScope,
		},
		github.ProviderName: {
			Issuer:                github.Issuer,
			AuthorizationEndpoint: github.AuthEndpoint,
			TokenEndpoint:         github.TokenEndpoint,
			UserInfoEndpoint:      github.UserEndpoint,
			EmailsEndpoint:        github.EmailEndpoint,
			Scope:                 github.DefaultScope,
		},
		google.ProviderName: {
			Issuer: google.Issuer,
			Scope:  google.DefaultScope,
		},
	}
}

// mergeProvider completa los campos vacíos de p con def.
func mergeProvider(p *Provider, def Provider) {
	if p.Issuer == "" {
		p.Issuer = def.Issuer
	}
	if p.AuthorizationEndpoint == "" {
		p.AuthorizationEndpoint = def.AuthorizationEndpoint
	}
	if p.TokenEndpoint == "" {
		p.TokenEndpoint = def.TokenEndpoint
	}
	if p.UserInfoEndpoint == "" {
		p.UserInfoEndpoint = def.UserInfoEndpoint
	}
	if p.EmailsEndpoint == "" {
		p.EmailsEndpoint = def.EmailsEndpoint
	}
	if p.Scope == "" {
		p.Scope = def.Scope
	}
}

func defaultRedirect(addr, basePath, id string) string {
	port := "3000"
	if i := strings.LastIndex(addr, ":"); i >= 0 && i < len(addr)-1 {
		port = addr[i+1:]
	}
	return "http://localhost:" + port + strings.TrimRight(basePath, "/") + "/" + id + "/callback"
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVICE_NAME"); ok {
		c.App.ServiceName = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// SERVER (PORT por compatibilidad con PaaS; SERVER_ADDR gana)
	if v, ok := getEnvStr("PORT"); ok {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("POST_LOGIN_REDIRECT"); ok {
		c.Server.PostLoginRedirect = v
	}
	if v, ok := getEnvBool("COOKIE_SECURE"); ok {
		c.Server.SecureCookies = &v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// SESSION (JWT_SECRET por compatibilidad; SESSION_SECRET gana)
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.Session.Secret = v
	}
	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		c.Session.Secret = v
	}
	if v, ok := getEnvStr("SESSION_TTL"); ok {
		c.Session.TTL = v
	}

	// OAUTH
	if v, ok := getEnvStr("OAUTH_STATE_TTL"); ok {
		c.OAuth.StateTTL = v
	}
	if v, ok := getEnvStr("OAUTH_HTTP_TIMEOUT"); ok {
		c.OAuth.HTTPTimeout = v
	}
	if v, ok := getEnvStr("OAUTH_DISCOVERY_TIMEOUT"); ok {
		c.OAuth.DiscoveryTimeout = v
	}

	// PROVIDERS: built-in + los del YAML + OAUTH_PROVIDERS (ids extra)
	if c.Providers == nil {
		c.Providers = map[string]Provider{}
	}
	ids := []string{discord.ProviderName, github.ProviderName, google.ProviderName}
	if extra, ok := getEnvCSV("OAUTH_PROVIDERS"); ok {
		ids = append(ids, extra...)
	}
	for id := range c.Providers {
		ids = append(ids, id)
	}
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		p := c.Providers[id]
		if applyProviderEnv(&p, envPrefix(id)) || hasProvider(c.Providers, id) {
			c.Providers[id] = p
		}
	}
}

// envPrefix mapea el id a un prefijo de env válido: "my-idp" -> "MY_IDP_".
func envPrefix(id string) string {
	return strings.ToUpper(strings.ReplaceAll(id, "-", "_")) + "_"
}

func hasProvider(m map[string]Provider, id string) bool {
	_, ok := m[id]
	return ok
}

// applyProviderEnv aplica {PREFIX}CLIENT_ID etc. Devuelve true si había alguna.
func applyProviderEnv(p *Provider, prefix string) bool {
	touched := false
	str := func(key string, dst *string) {
		if v, ok := getEnvStr(prefix + key); ok {
			*dst = strings.TrimSpace(v)
			touched = true
		}
	}
	str("CLIENT_ID", &p.ClientID)
	str("CLIENT_SECRET", &p.ClientSecret)
	str("ISSUER", &p.Issuer)
	str("AUTHORIZATION_ENDPOINT", &p.AuthorizationEndpoint)
	str("TOKEN_ENDPOINT", &p.TokenEndpoint)
	str("USERINFO_ENDPOINT", &p.UserInfoEndpoint)
	str("EMAILS_ENDPOINT", &p.EmailsEndpoint)
	str("REDIRECT_URI", &p.RedirectURI)
	str("SCOPE", &p.Scope)
	if v, ok := getEnvBool(prefix + "ENABLED"); ok {
		p.Enabled = &v
		touched = true
	}
	if v, ok := getEnvBool(prefix + "OPTIONAL"); ok {
		p.Optional = v
		touched = true
	}
	return touched
}

// IsProd reporta si APP_ENV es prod/production.
func (c *Config) IsProd() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}

// CookiesSecure: explícito si se configuró, si no solo en prod.
func (c *Config) CookiesSecure() bool {
	if c.Server.SecureCookies != nil {
		return *c.Server.SecureCookies
	}
	return c.IsProd()
}

func (c *Config) SessionTTL() time.Duration  { return mustDur(c.Session.TTL, 7*24*time.Hour) }
func (c *Config) StateTTL() time.Duration    { return mustDur(c.OAuth.StateTTL, 10*time.Minute) }
func (c *Config) HTTPTimeout() time.Duration { return mustDur(c.OAuth.HTTPTimeout, 10*time.Second) }
func (c *Config) DiscoveryTimeout() time.Duration {
	return mustDur(c.OAuth.DiscoveryTimeout, 10*time.Second)
}

// ProviderConfigs devuelve las configuraciones para oauth.NewRegistry,
// ordenadas por id.
func (c *Config) ProviderConfigs() []oauth.ProviderConfig {
	ids := make([]string, 0, len(c.Providers))
	for id := range c.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]oauth.ProviderConfig, 0, len(ids))
	for _, id := range ids {
		p := c.Providers[id]
		out = append(out, oauth.ProviderConfig{
			ID:                    id,
			Issuer:                p.Issuer,
			AuthorizationEndpoint: p.AuthorizationEndpoint,
			TokenEndpoint:         p.TokenEndpoint,
			UserInfoEndpoint:      p.UserInfoEndpoint,
			EmailsEndpoint:        p.EmailsEndpoint,
			ClientID:              p.ClientID,
			ClientSecret:          p.ClientSecret,
			RedirectURI:           p.RedirectURI,
			Scope:                 p.Scope,
			Enabled:               p.Enabled == nil || *p.Enabled,
			Optional:              p.Optional,
		})
	}
	return out
}

// Validate chequea valores críticos. Las credenciales de providers las
// valida oauth.NewRegistry.
func (c *Config) Validate() error {
	var errs []error
	if c.IsProd() && (c.Session.Secret == "" || c.Session.Secret == DevSessionSecret) {
		errs = append(errs, errors.New("SESSION_SECRET (or JWT_SECRET) is required in prod"))
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown cache kind %q", c.Cache.Kind))
	}
	for name, v := range map[string]string{
		"session.ttl":             c.Session.TTL,
		"oauth.state_ttl":         c.OAuth.StateTTL,
		"oauth.http_timeout":      c.OAuth.HTTPTimeout,
		"oauth.discovery_timeout": c.OAuth.DiscoveryTimeout,
	} {
		if d, err := ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, v))
		}
	}
	return errors.Join(errs...)
}

// ParseDuration es time.ParseDuration con soporte para días ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func mustDur(s string, def time.Duration) time.Duration {
	if d, err := ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
