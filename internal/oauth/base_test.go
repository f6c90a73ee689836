package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenServer struct {
	*httptest.Server
	lastForm url.Values
	status   int
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: http.StatusOK}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = r.ParseForm()
			ts.lastForm = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			if ts.status != http.StatusOK {
				w.WriteHeader(ts.status)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600,"id_token":"idt"}`))
		case "/me":
			if r.Header.Get("Authorization") != "Bearer at-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":12345678901234567,"name":"Ada"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) client() *ResolvedClient {
	return &ResolvedClient{
		Config: ProviderConfig{
			ID:           "acme",
			ClientID:     "cid",
			ClientSecret: "secret",
			RedirectURI:  "http://localhost/cb",
			Scope:        "openid email",
		},
		AuthURL:     ts.URL + "/authorize",
		TokenURL:    ts.URL + "/token",
		UserInfoURL: ts.URL + "/me",
	}
}

func TestBase_ExchangeSendsVerifier(t *testing.T) {
	ts := newTokenServer(t)
	b := NewBase("acme", ts.Client())

	tok, err := b.ExchangeToken(context.Background(), ts.client(), "http://localhost/cb?code=abc&state=s1", "s1", "verifier-xyz")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)
	assert.Equal(t, "idt", tok.IDToken)

	assert.Equal(t, "abc", ts.lastForm.Get("code"))
	assert.Equal(t, "verifier-xyz", ts.lastForm.Get("code_verifier"))
	assert.Equal(t, "authorization_code", ts.lastForm.Get("grant_type"))
	assert.Equal(t, "cid", ts.lastForm.Get("client_id"))
}

func TestBase_ExchangeRejectsBadCallback(t *testing.T) {
	ts := newTokenServer(t)
	b := NewBase("acme", ts.Client())

	cases := map[string]string{
		"state mismatch": "http://localhost/cb?code=abc&state=other",
		"provider error": "http://localhost/cb?error=access_denied&state=s1",
		"missing code":   "http://localhost/cb?state=s1",
	}
	for name, cb := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := b.ExchangeToken(context.Background(), ts.client(), cb, "s1", "v")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTokenExchangeFailed)
			assert.Nil(t, ts.lastForm, "token endpoint must not be called")
		})
	}
}

func TestBase_ExchangeErrorClassification(t *testing.T) {
	ts := newTokenServer(t)
	b := NewBase("acme", ts.Client())

	ts.status = http.StatusBadRequest
	_, err := b.ExchangeToken(context.Background(), ts.client(), "http://localhost/cb?code=abc&state=s1", "s1", "v")
	assert.ErrorIs(t, err, ErrTokenExchangeFailed)

	ts.status = http.StatusServiceUnavailable
	_, err = b.ExchangeToken(context.Background(), ts.client(), "http://localhost/cb?code=abc&state=s1", "s1", "v")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestBase_FetchProfileKeepsLargeNumericIDs(t *testing.T) {
	ts := newTokenServer(t)
	b := NewBase("acme", ts.Client())

	raw, err := b.FetchProfile(context.Background(), ts.client(), &TokenSet{AccessToken: "at-1"})
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567"), raw["id"])
	assert.Equal(t, "12345678901234567", ProfileID(raw))

	_, err = b.FetchProfile(context.Background(), ts.client(), &TokenSet{AccessToken: "wrong"})
	assert.ErrorIs(t, err, ErrProfileFetchFailed)
}

func TestBase_AuthorizationParams(t *testing.T) {
	b := NewBase("acme", nil)
	rc := &ResolvedClient{Config: ProviderConfig{ClientID: "cid", RedirectURI: "http://localhost/cb", Scope: "identify email"}}

	q := b.AuthorizationParams(rc, "st", "ch")
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "ch", q.Get("code_challenge"))
	assert.Equal(t, "st", q.Get("state"))
	assert.Equal(t, "identify email", q.Get("scope"))
	assert.Equal(t, "code", q.Get("response_type"))
}
