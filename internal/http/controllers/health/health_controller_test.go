package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	res  oauth.InitResult
	done bool
}

func (f fakeSource) Status() oauth.InitResult { return f.res }
func (f fakeSource) Initialized() bool        { return f.done }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func readyz(t *testing.T, src StatusSource) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	NewHealthController(src, nil, "1.2.3").Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name   string
		src    fakeSource
		code   int
		status string
	}{
		{"not initialized", fakeSource{}, http.StatusServiceUnavailable, "unavailable"},
		{"all ready", fakeSource{done: true, res: oauth.InitResult{Ready: []string{"discord", "github"}}}, http.StatusOK, "ready"},
		{"some failed", fakeSource{done: true, res: oauth.InitResult{
			Ready:  []string{"discord"},
			Failed: map[string]error{"google": errors.New("discovery timeout")},
		}}, http.StatusOK, "degraded"},
		{"none ready", fakeSource{done: true, res: oauth.InitResult{
			Failed: map[string]error{"google": errors.New("boom")},
		}}, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := readyz(t, tt.src)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, "1.2.3", resp.Version)
		})
	}
}

func TestReadyzListsProvidersSorted(t *testing.T) {
	_, resp := readyz(t, fakeSource{done: true, res: oauth.InitResult{
		Ready:  []string{"github", "discord"},
		Failed: map[string]error{"acme": errors.New("issuer mismatch")},
	}})
	require.Len(t, resp.Providers, 3)
	assert.Equal(t, "acme", resp.Providers[0].ID)
	assert.False(t, resp.Providers[0].Ready)
	assert.Equal(t, "issuer mismatch", resp.Providers[0].Error)
	assert.Equal(t, "discord", resp.Providers[1].ID)
	assert.True(t, resp.Providers[1].Ready)
}

func TestReadyzChecksCache(t *testing.T) {
	src := fakeSource{done: true, res: oauth.InitResult{Ready: []string{"discord"}}}
	tests := []struct {
		name   string
		pinger fakePinger
		code   int
		status string
		cache  string
	}{
		{"cache up", fakePinger{}, http.StatusOK, "ready", "ok"},
		{"cache down", fakePinger{err: errors.New("dial tcp: connection refused")}, http.StatusServiceUnavailable, "unavailable", "down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthController(src, tt.pinger, "").Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.cache, resp.Cache)
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}
