package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/socialauth/internal/metrics"
	"golang.org/x/oauth2"
)

const (
	userAgent       = "socialauth/1.0"
	maxProfileBytes = 1 << 20
)

// Base implementa las partes OAuth2/OIDC comunes a todos los providers.
// Los adapters concretos la embeben y sobreescriben lo que necesiten.
type Base struct {
	id   string
	http *http.Client
	keys *keySet
}

// NewBase crea un Base. hc debe tener timeout; si es nil se usa uno de 10s.
func NewBase(id string, hc *http.Client) Base {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return Base{id: normalizeID(id), http: hc, keys: newKeySet()}
}

func (b Base) ID() string { return b.id }

// AuthorizationParams arma el authorization request con PKCE S256.
func (b Base) AuthorizationParams(rc *ResolvedClient, state, codeChallenge string) url.Values {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", rc.Config.ClientID)
	q.Set("redirect_uri", rc.Config.RedirectURI)
	q.Set("scope", rc.Config.Scope)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")
	q.Set("state", state)
	return q
}

// ExchangeToken valida el callback y canjea el code usando x/oauth2 con el
// verifier PKCE. Si el client salió de discovery y el provider devuelve
// id_token, se verifica contra su JWKS antes de aceptarlo.
func (b Base) ExchangeToken(ctx context.Context, rc *ResolvedClient, callbackURL, expectedState, verifier string) (*TokenSet, error) {
	code, err := CodeFromCallback(callbackURL, expectedState)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.http)

	start := time.Now()
	tok, err := rc.OAuth2Config().Exchange(ctx, code, oauth2.VerifierOption(verifier))
	metrics.ObserveProviderRequest(b.id, "token", start)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	ts := &TokenSet{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if idt, ok := tok.Extra("id_token").(string); ok {
		ts.IDToken = idt
	}
	if ts.IDToken != "" && rc.Discovered && rc.JWKSURI != "" {
		if _, err := b.verifyIDToken(ctx, rc, ts.IDToken); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// FetchProfile hace GET autenticado al userinfo endpoint resuelto.
func (b Base) FetchProfile(ctx context.Context, rc *ResolvedClient, tok *TokenSet) (map[string]any, error) {
	var raw map[string]any
	if err := b.GetJSON(ctx, "userinfo", rc.UserInfoURL, tok.AccessToken, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty profile", ErrProfileFetchFailed)
	}
	return raw, nil
}

// GetJSON hace un GET con bearer token y decodifica JSON en out.
// Los números se decodifican como json.Number para no perder ids grandes.
// Errores de red, timeouts y 5xx se reportan como ErrProviderUnavailable;
// el resto como ErrProfileFetchFailed.
func (b Base) GetJSON(ctx context.Context, op, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := b.http.Do(req)
	metrics.ObserveProviderRequest(b.id, op, start)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", ErrProviderUnavailable, op, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s http %d", ErrProviderUnavailable, op, resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: %s http %d", ErrProfileFetchFailed, op, resp.StatusCode)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %s decode: %v", ErrProfileFetchFailed, op, err)
	}
	return nil
}

// CodeFromCallback extrae el code de la URL de callback. Rechaza un state
// distinto de expectedState, un parámetro error del provider o un code vacío.
func CodeFromCallback(callbackURL, expectedState string) (string, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid callback url", ErrTokenExchangeFailed)
	}
	q := u.Query()

	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("%w: provider returned error %q", ErrTokenExchangeFailed, e)
	}
	if expectedState == "" || q.Get("state") != expectedState {
		return "", fmt.Errorf("%w: %w", ErrTokenExchangeFailed, ErrStateMismatch)
	}
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		return "", fmt.Errorf("%w: missing code", ErrTokenExchangeFailed)
	}
	return code, nil
}

func classifyExchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode >= 500 {
			return fmt.Errorf("%w: token endpoint http %d", ErrProviderUnavailable, re.Response.StatusCode)
		}
		if re.ErrorCode != "" {
			return fmt.Errorf("%w: %s", ErrTokenExchangeFailed, re.ErrorCode)
		}
		return fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	if isNetworkError(err) {
		return fmt.Errorf("%w: token endpoint: %v", ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
