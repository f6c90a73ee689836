// Package pkce guarda el par state → code_verifier de cada authorization
// request en curso. Cada state se consume una sola vez.
package pkce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/socialauth/internal/cache"
	tokens "github.com/dropDatabas3/socialauth/internal/security/token"
	"golang.org/x/oauth2"
)

// DefaultTTL es la ventana en la que un state sigue siendo canjeable.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "oauth:state:"

// ErrNotFound cubre state inexistente, expirado o ya consumido, sin distinguir.
var ErrNotFound = errors.New("pkce: state not found")

// Pending es una autorización en curso.
type Pending struct {
	State     string    `json:"state"`
	Verifier  string    `json:"verifier"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persiste Pending sobre un cache.Client con TTL.
type Store struct {
	cache cache.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewStore crea el store. ttl <= 0 usa DefaultTTL.
func NewStore(c cache.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: c, ttl: ttl, now: time.Now}
}

// TTL devuelve la ventana de validez configurada.
func (s *Store) TTL() time.Duration { return s.ttl }

// Begin genera state y verifier, guarda el par y devuelve el challenge S256.
func (s *Store) Begin(ctx context.Context, provider string) (Pending, string, error) {
	state, err := tokens.Opaque(tokens.DefaultBytes)
	if err != nil {
		return Pending{}, "", fmt.Errorf("pkce: state: %w", err)
	}

	p := Pending{
		State:     state,
		Verifier:  oauth2.GenerateVerifier(),
		Provider:  provider,
		CreatedAt: s.now().UTC(),
	}
	b, err := json.Marshal(p)
	if err != nil {
		return Pending{}, "", err
	}
	if err := s.cache.Set(ctx, keyPrefix+state, b, s.ttl); err != nil {
		return Pending{}, "", fmt.Errorf("pkce: store: %w", err)
	}
	return p, oauth2.S256ChallengeFromVerifier(p.Verifier), nil
}

// Consume obtiene y elimina el Pending en una sola operación atómica.
// Dos consumos concurrentes del mismo state: solo uno tiene éxito.
func (s *Store) Consume(ctx context.Context, state string) (Pending, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return Pending{}, ErrNotFound
	}

	b, err := s.cache.Take(ctx, keyPrefix+state)
	if err != nil {
		if cache.IsNotFound(err) {
			return Pending{}, ErrNotFound
		}
		return Pending{}, fmt.Errorf("pkce: consume: %w", err)
	}

	var p Pending
	if err := json.Unmarshal(b, &p); err != nil {
		return Pending{}, ErrNotFound
	}
	// chequeo lazy además del TTL del backend
	if s.now().Sub(p.CreatedAt) > s.ttl {
		return Pending{}, ErrNotFound
	}
	return p, nil
}
