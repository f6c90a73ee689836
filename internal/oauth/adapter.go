package oauth

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Adapter es la capacidad por provider. Agregar un provider es agregar un
// Adapter; el flujo compartido (internal/auth) no cambia.
type Adapter interface {
	// ID del provider que atiende ("discord", "github", ...).
	ID() string

	// AuthorizationParams arma los query params del authorization request.
	AuthorizationParams(rc *ResolvedClient, state, codeChallenge string) url.Values

	// ExchangeToken canjea el code de callbackURL. Re-verifica que el state
	// del callback sea expectedState antes de hablar con el provider.
	ExchangeToken(ctx context.Context, rc *ResolvedClient, callbackURL, expectedState, verifier string) (*TokenSet, error)

	// FetchProfile obtiene el perfil crudo con el access token.
	FetchProfile(ctx context.Context, rc *ResolvedClient, tok *TokenSet) (map[string]any, error)

	// Normalize mapea el perfil crudo al NormalizedUser. Debe ser determinista.
	Normalize(raw map[string]any) NormalizedUser
}

// Adapters resuelve el Adapter de cada provider. Los providers sin adapter
// registrado usan Generic.
type Adapters struct {
	http *http.Client

	mu      sync.RWMutex
	byID    map[string]Adapter
	generic map[string]Adapter
}

// NewAdapters crea el set. hc es el cliente para los adapters genéricos.
func NewAdapters(hc *http.Client, list ...Adapter) *Adapters {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	a := &Adapters{
		http:    hc,
		byID:    make(map[string]Adapter, len(list)),
		generic: make(map[string]Adapter),
	}
	for _, ad := range list {
		a.byID[normalizeID(ad.ID())] = ad
	}
	return a
}

// For devuelve el adapter del provider.
func (a *Adapters) For(providerID string) Adapter {
	id := normalizeID(providerID)

	a.mu.RLock()
	ad, ok := a.byID[id]
	if !ok {
		ad, ok = a.generic[id]
	}
	a.mu.RUnlock()
	if ok {
		return ad
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ad, ok := a.generic[id]; ok {
		return ad
	}
	g := NewGeneric(id, a.http)
	a.generic[id] = g
	return g
}

// Generic es el adapter best-effort para providers sin mapeo propio.
type Generic struct {
	Base
}

// NewGeneric crea un adapter genérico.
func NewGeneric(id string, hc *http.Client) *Generic {
	return &Generic{Base: NewBase(id, hc)}
}

// Normalize prueba los nombres de campo más comunes.
func (g *Generic) Normalize(raw map[string]any) NormalizedUser {
	username := FirstString(raw, "name", "username", "login")
	if username == "" {
		username = "Unknown"
	}
	return NormalizedUser{
		ID:         ProfileID(raw),
		Provider:   g.ID(),
		Username:   username,
		Email:      OptionalString(raw, "email"),
		AvatarURL:  OptionalString(raw, "picture", "avatar_url"),
		RawProfile: raw,
	}
}
