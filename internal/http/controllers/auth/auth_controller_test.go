package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	svc "github.com/dropDatabas3/socialauth/internal/auth"
	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/dropDatabas3/socialauth/internal/session"
	"github.com/dropDatabas3/socialauth/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	signIn      *svc.SignIn
	signInErr   error
	callbackErr error
	user        *users.User
	userErr     error

	logoutErr error

	gotReturned, gotTransport, gotCallbackURL string
	loggedOut                                 []string
}

func (f *fakeService) StartSignIn(context.Context, string) (*svc.SignIn, error) {
	return f.signIn, f.signInErr
}

func (f *fakeService) HandleCallback(_ context.Context, providerID, returned, transport, callbackURL string) (*svc.Result, error) {
	f.gotReturned, f.gotTransport, f.gotCallbackURL = returned, transport, callbackURL
	if f.callbackErr != nil {
		return nil, f.callbackErr
	}
	return &svc.Result{
		Credential: &session.Credential{Token: "session-token", ExpiresAt: time.Now().Add(time.Hour)},
		UserID:     "u-1",
		Provider:   providerID,
	}, nil
}

func (f *fakeService) ResolveSession(context.Context, string) (string, error) { return "u-1", nil }
func (f *fakeService) RevokeSession(context.Context, string) error            { return nil }

func (f *fakeService) CurrentUser(context.Context, string) (*users.User, error) {
	return f.user, f.userErr
}

func (f *fakeService) Logout(_ context.Context, credential string) error {
	f.loggedOut = append(f.loggedOut, credential)
	return f.logoutErr
}

func newRouter(f *fakeService) http.Handler {
	c := NewController(Deps{Service: f, PostLoginRedirect: "http://localhost:5500/"})
	r := chi.NewRouter()
	r.Get("/{provider}/sign-in", c.SignIn)
	r.Get("/{provider}/callback", c.Callback)
	r.Get("/me", c.Me)
	r.Post("/logout", c.Logout)
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignInSetsStateCookie(t *testing.T) {
	f := &fakeService{signIn: &svc.SignIn{RedirectURL: "https://provider.example/authorize?state=abc", State: "abc"}}
	rec := serve(newRouter(f), httptest.NewRequest(http.MethodGet, "/discord/sign-in", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://provider.example/authorize?state=abc", rec.Header().Get("Location"))
	c := responseCookie(rec, "oauth_state")
	require.NotNil(t, c)
	assert.Equal(t, "abc", c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, int((10 * time.Minute).Seconds()), c.MaxAge)
}

func TestSignInUnknownProvider(t *testing.T) {
	f := &fakeService{signInErr: fmt.Errorf("%w: %q", oauth.ErrNotConfigured, "nope")}
	rec := serve(newRouter(f), httptest.NewRequest(http.MethodGet, "/nope/sign-in", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, responseCookie(rec, "oauth_state"))
}

func TestCallbackSuccess(t *testing.T) {
	f := &fakeService{}
	req := httptest.NewRequest(http.MethodGet, "http://api.example/discord/callback?code=c&state=abc", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "abc"})
	rec := serve(newRouter(f), req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://localhost:5500/", rec.Header().Get("Location"))
	assert.Equal(t, "abc", f.gotReturned)
	assert.Equal(t, "abc", f.gotTransport)
	assert.Equal(t, "https://api.example/discord/callback?code=c&state=abc", f.gotCallbackURL)

	sess := responseCookie(rec, "auth_token")
	require.NotNil(t, sess)
	assert.Equal(t, "session-token", sess.Value)
	assert.True(t, sess.HttpOnly)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), sess.MaxAge)

	state := responseCookie(rec, "oauth_state")
	require.NotNil(t, state)
	assert.Less(t, state.MaxAge, 0)
}

func TestCallbackErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		code        int
		clearsState bool
	}{
		{"state mismatch keeps cookie", oauth.ErrStateMismatch, http.StatusBadRequest, false},
		{"not ready keeps cookie", oauth.ErrNotReady, http.StatusServiceUnavailable, false},
		{"invalid state clears cookie", oauth.ErrInvalidOrExpiredState, http.StatusBadRequest, true},
		{"auth failure clears cookie", fmt.Errorf("%w: %w", oauth.ErrAuthenticationFailed, oauth.ErrStateMismatch), http.StatusUnauthorized, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeService{callbackErr: tt.err}
			req := httptest.NewRequest(http.MethodGet, "/discord/callback?code=c&state=abc", nil)
			req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "abc"})
			rec := serve(newRouter(f), req)

			assert.Equal(t, tt.code, rec.Code)
			assert.Nil(t, responseCookie(rec, "auth_token"))
			if tt.clearsState {
				assert.NotNil(t, responseCookie(rec, "oauth_state"))
			} else {
				assert.Nil(t, responseCookie(rec, "oauth_state"))
			}
		})
	}
}

func TestMe(t *testing.T) {
	email := "ada@example.com"
	f := &fakeService{user: &users.User{ID: "u-1", Provider: "github", Username: "ada", Email: &email}}
	h := newRouter(f)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "session-token"})
	rec = serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ada", body["username"])
	assert.Equal(t, "ada@example.com", body["email"])

	f.user, f.userErr = nil, oauth.ErrInvalidSession
	rec = serve(h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.userErr = users.ErrNotFound
	rec = serve(h, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogout(t *testing.T) {
	f := &fakeService{}
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "session-token"})
	rec := serve(newRouter(f), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"session-token"}, f.loggedOut)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, rec.Body.String())
	c := responseCookie(rec, "auth_token")
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)

	// sin cookie también responde 200
	rec = serve(newRouter(f), httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.loggedOut, 1)
}

func TestLogoutClearsCookieWhenRevocationFails(t *testing.T) {
	f := &fakeService{logoutErr: errors.New("redis: connection refused")}
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "session-token"})
	rec := serve(newRouter(f), req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
	c := responseCookie(rec, "auth_token")
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)
}
