package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/socialauth/internal/metrics"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const (
	jwksMaxAge    = time.Hour
	idTokenLeeway = 30 * time.Second
	maxJWKSBytes  = 256 << 10
)

type jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwksEntry struct {
	set  *jwks
	at   time.Time
	etag string
}

// keySet cachea los JWKS por URI. Se comparte entre copias de Base.
type keySet struct {
	mu      sync.RWMutex
	entries map[string]*jwksEntry
	now     func() time.Time
}

func newKeySet() *keySet {
	return &keySet{entries: map[string]*jwksEntry{}, now: time.Now}
}

// verifyIDToken valida firma (RS256 contra el JWKS del provider), iss, aud y
// exp del id_token.
func (b Base) verifyIDToken(ctx context.Context, rc *ResolvedClient, idToken string) (jwtv5.MapClaims, error) {
	ks := b.keys
	if ks == nil {
		ks = newKeySet()
	}

	var keyErr error
	tok, err := jwtv5.Parse(idToken, func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := ks.rsaKeyForKid(ctx, b, rc.JWKSURI, kid)
		if err != nil {
			keyErr = err
		}
		return key, err
	},
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithAudience(rc.Config.ClientID),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithLeeway(idTokenLeeway),
		jwtv5.WithTimeFunc(ks.now),
	)
	if keyErr != nil {
		return nil, keyErr
	}
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: invalid id_token: %v", ErrTokenExchangeFailed, err)
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: id_token claims type", ErrTokenExchangeFailed)
	}
	iss := strClaim(claims, "iss")
	if !sameIssuer(iss, rc.Config.Issuer) {
		return nil, fmt.Errorf("%w: id_token bad iss %q", ErrTokenExchangeFailed, iss)
	}
	return claims, nil
}

// sameIssuer acepta además la forma sin esquema que emite Google
// ("accounts.google.com").
func sameIssuer(got, want string) bool {
	if got == "" {
		return false
	}
	got, want = strings.TrimRight(got, "/"), strings.TrimRight(want, "/")
	return got == want || (!strings.Contains(got, "://") && "https://"+got == want)
}

func strClaim(m jwtv5.MapClaims, k string) string {
	if s, _ := m[k].(string); s != "" {
		return s
	}
	return ""
}

// rsaKeyForKid busca la key en cache; si el kid no está (rotación) refresca
// el JWKS una vez antes de fallar.
func (ks *keySet) rsaKeyForKid(ctx context.Context, b Base, uri, kid string) (*rsa.PublicKey, error) {
	set, fresh, err := ks.get(ctx, b, uri, false)
	if err != nil {
		return nil, err
	}
	if k, ok := findRSAKey(set, kid); ok {
		return decodeRSAKey(k)
	}
	if !fresh {
		if set, _, err = ks.get(ctx, b, uri, true); err != nil {
			return nil, err
		}
		if k, ok := findRSAKey(set, kid); ok {
			return decodeRSAKey(k)
		}
	}
	return nil, fmt.Errorf("%w: id_token kid %q not found", ErrTokenExchangeFailed, kid)
}

// get devuelve el JWKS cacheado o lo descarga. fresh indica que se acaba de
// descargar en esta llamada.
func (ks *keySet) get(ctx context.Context, b Base, uri string, force bool) (*jwks, bool, error) {
	ks.mu.RLock()
	e := ks.entries[uri]
	ks.mu.RUnlock()
	if e != nil && !force && ks.now().Sub(e.at) < jwksMaxAge {
		return e.set, false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: jwks: %v", ErrTokenExchangeFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if e != nil && e.etag != "" {
		req.Header.Set("If-None-Match", e.etag)
	}

	start := time.Now()
	resp, err := b.http.Do(req)
	metrics.ObserveProviderRequest(b.id, "jwks", start)
	if err != nil {
		return nil, false, fmt.Errorf("%w: jwks: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && e != nil {
		ks.mu.Lock()
		ks.entries[uri] = &jwksEntry{set: e.set, at: ks.now(), etag: e.etag}
		ks.mu.Unlock()
		return e.set, true, nil
	}
	if resp.StatusCode >= 500 {
		return nil, false, fmt.Errorf("%w: jwks http %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return nil, false, fmt.Errorf("%w: jwks http %d", ErrTokenExchangeFailed, resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&set); err != nil {
		return nil, false, fmt.Errorf("%w: jwks decode: %v", ErrTokenExchangeFailed, err)
	}

	ks.mu.Lock()
	ks.entries[uri] = &jwksEntry{set: &set, at: ks.now(), etag: resp.Header.Get("ETag")}
	ks.mu.Unlock()
	return &set, true, nil
}

func findRSAKey(set *jwks, kid string) (jwk, bool) {
	for _, k := range set.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		// sin kid en el header solo sirve si el set tiene una única key
		if k.Kid == kid || (kid == "" && len(set.Keys) == 1) {
			return k, true
		}
	}
	return jwk{}, false
}

func decodeRSAKey(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil || len(nb) == 0 {
		return nil, fmt.Errorf("%w: jwks bad modulus", ErrTokenExchangeFailed)
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("%w: jwks bad exponent", ErrTokenExchangeFailed)
	}
	e := 65537
	if len(eb) > 0 {
		// big-endian bytes to int
		e = 0
		for _, c := range eb {
			e = (e << 8) | int(c)
		}
	}
	if e < 3 {
		return nil, fmt.Errorf("%w: jwks exponent too small", ErrTokenExchangeFailed)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}
