// Package session emite y resuelve las credenciales de sesión.
//
// La credencial es un JWT HS256 cuyo único dato es el id de sesión (jti);
// el userId vive solo en el store, bajo "sid:" + sha256(sid). Sin el store
// la credencial no revela a quién pertenece, y revocar es borrar el registro.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dropDatabas3/socialauth/internal/cache"
	"github.com/dropDatabas3/socialauth/internal/metrics"
	"github.com/dropDatabas3/socialauth/internal/oauth"
	tokens "github.com/dropDatabas3/socialauth/internal/security/token"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	DefaultTTL    = 7 * 24 * time.Hour
	DefaultIssuer = "socialauth"

	keyPrefix = "sid:"
	hkdfInfo  = "socialauth/session/hs256"
)

// Session es el registro guardado en el store.
type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Credential es lo que se entrega al cliente (cookie).
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Config configura el Issuer.
type Config struct {
	Secret string        // requerido; la clave de firma se deriva con HKDF
	TTL    time.Duration // default 7d
	Issuer string        // claim iss; default "socialauth"
}

// Issuer es el dueño exclusivo del store de sesiones.
type Issuer struct {
	store  cache.Client
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewIssuer crea el Issuer.
func NewIssuer(store cache.Client, cfg Config) (*Issuer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("session: secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(cfg.Secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("session: derive key: %w", err)
	}

	return &Issuer{
		store:  store,
		key:    key,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// TTL devuelve la duración de las sesiones.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue crea una sesión para userID y devuelve la credencial firmada.
func (i *Issuer) Issue(ctx context.Context, userID string) (*Credential, error) {
	if userID == "" {
		return nil, errors.New("session: empty user id")
	}
	sid, err := tokens.Opaque(tokens.DefaultBytes)
	if err != nil {
		return nil, fmt.Errorf("session: id: %w", err)
	}

	now := i.now().UTC().Truncate(time.Second)
	s := Session{
		ID:        sid,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := i.store.Set(ctx, storeKey(sid), b, i.ttl); err != nil {
		return nil, fmt.Errorf("session: store: %w", err)
	}

	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.RegisteredClaims{
		ID:        sid,
		Issuer:    i.issuer,
		IssuedAt:  jwtv5.NewNumericDate(s.IssuedAt),
		ExpiresAt: jwtv5.NewNumericDate(s.ExpiresAt),
	})
	signed, err := tok.SignedString(i.key)
	if err != nil {
		// no dejar un registro huérfano
		_ = i.store.Delete(ctx, storeKey(sid))
		return nil, fmt.Errorf("session: sign: %w", err)
	}

	metrics.SessionsIssued.Inc()
	return &Credential{Token: signed, ExpiresAt: s.ExpiresAt}, nil
}

// Resolve valida la credencial y devuelve la sesión. Credencial adulterada,
// expirada, revocada o desconocida: oauth.ErrInvalidSession, sin distinguir.
func (i *Issuer) Resolve(ctx context.Context, credential string) (*Session, error) {
	sid, err := i.parse(credential, true)
	if err != nil {
		return nil, oauth.ErrInvalidSession
	}

	b, err := i.store.Get(ctx, storeKey(sid))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, oauth.ErrInvalidSession
		}
		return nil, fmt.Errorf("session: lookup: %w", err)
	}

	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, oauth.ErrInvalidSession
	}
	if !i.now().Before(s.ExpiresAt) {
		return nil, oauth.ErrInvalidSession
	}
	s.ID = sid
	return &s, nil
}

// Revoke borra el registro de la sesión. Es idempotente: una credencial ya
// revocada, expirada o ilegible no es error.
func (i *Issuer) Revoke(ctx context.Context, credential string) error {
	// sin validar exp: una sesión expirada igual se limpia
	sid, err := i.parse(credential, false)
	if err != nil {
		return nil
	}
	if err := i.store.Delete(ctx, storeKey(sid)); err != nil {
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}

func (i *Issuer) parse(credential string, validateClaims bool) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", errors.New("empty credential")
	}

	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(i.issuer),
		jwtv5.WithTimeFunc(i.now),
	}
	if !validateClaims {
		opts = []jwtv5.ParserOption{
			jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
			jwtv5.WithoutClaimsValidation(),
		}
	}

	var claims jwtv5.RegisteredClaims
	tok, err := jwtv5.ParseWithClaims(credential, &claims, func(t *jwtv5.Token) (any, error) {
		return i.key, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return "", errors.New("invalid credential")
	}
	if claims.ID == "" {
		return "", errors.New("missing jti")
	}
	if !validateClaims && claims.Issuer != i.issuer {
		return "", errors.New("issuer mismatch")
	}
	return claims.ID, nil
}

// storeKey no guarda el sid en claro.
func storeKey(sid string) string {
	return keyPrefix + tokens.Hash(sid)
}
