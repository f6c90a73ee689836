package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectEmail(t *testing.T) {
	cases := []struct {
		name   string
		emails []EmailInfo
		want   string
		ok     bool
	}{
		{"primary and verified wins", []EmailInfo{
			{Email: "a@x", Verified: true},
			{Email: "b@x", Primary: true},
			{Email: "c@x", Primary: true, Verified: true},
		}, "c@x", true},
		{"primary over verified", []EmailInfo{
			{Email: "a@x", Verified: true},
			{Email: "b@x", Primary: true},
		}, "b@x", true},
		{"first as last resort", []EmailInfo{
			{Email: "a@x"},
			{Email: "b@x", Verified: true},
		}, "a@x", true},
		{"empty", nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectEmail(tc.emails)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got.Email)
		})
	}
}

type apiStub struct {
	*httptest.Server
	emailCalls atomic.Int32
	user       string
	emails     string
	emailsCode int
}

func newAPIStub(t *testing.T, user, emails string) *apiStub {
	s := &apiStub{user: user, emails: emails, emailsCode: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user":
			_, _ = w.Write([]byte(s.user))
		case "/user/emails":
			s.emailCalls.Add(1)
			w.WriteHeader(s.emailsCode)
			_, _ = w.Write([]byte(s.emails))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *apiStub) resolved() *oauth.ResolvedClient {
	return &oauth.ResolvedClient{
		Config:      oauth.ProviderConfig{ID: ProviderName, EmailsEndpoint: s.URL + "/user/emails"},
		UserInfoURL: s.URL + "/user",
	}
}

func TestFetchProfile_MissingEmailTriggersOneLookup(t *testing.T) {
	s := newAPIStub(t,
		`{"id":42,"login":"octo","email":null,"avatar_url":"https://avatars/42"}`,
		`[{"email":"old@x","primary":false,"verified":true},{"email":"main@x","primary":true,"verified":true}]`,
	)
	a := New(s.Client())

	raw, err := a.FetchProfile(context.Background(), s.resolved(), &oauth.TokenSet{AccessToken: "t"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), s.emailCalls.Load())

	u := a.Normalize(raw)
	assert.Equal(t, "42", u.ID)
	assert.Equal(t, "octo", u.Username)
	require.NotNil(t, u.Email)
	assert.Equal(t, "main@x", *u.Email)
	require.NotNil(t, u.AvatarURL)
	assert.Equal(t, "https://avatars/42", *u.AvatarURL)
}

func TestFetchProfile_EmailPresentSkipsLookup(t *testing.T) {
	s := newAPIStub(t, `{"id":1,"login":"octo","email":"pub@x"}`, `[]`)
	a := New(s.Client())

	raw, err := a.FetchProfile(context.Background(), s.resolved(), &oauth.TokenSet{AccessToken: "t"})
	require.NoError(t, err)
	assert.Equal(t, int32(0), s.emailCalls.Load())
	assert.Equal(t, "pub@x", raw["email"])
}

func TestFetchProfile_EmailLookupFailureIsNotFatal(t *testing.T) {
	s := newAPIStub(t, `{"id":1,"login":"octo"}`, `{"message":"forbidden"}`)
	s.emailsCode = http.StatusForbidden
	a := New(s.Client())

	raw, err := a.FetchProfile(context.Background(), s.resolved(), &oauth.TokenSet{AccessToken: "t"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), s.emailCalls.Load())
	assert.Nil(t, a.Normalize(raw).Email)
}
