package oauth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticConfig(id string) ProviderConfig {
	return ProviderConfig{
		ID:                    id,
		Issuer:                "https://" + id + ".example",
		AuthorizationEndpoint: "https://" + id + ".example/authorize",
		TokenEndpoint:         "https://" + id + ".example/token",
		UserInfoEndpoint:      "https://" + id + ".example/me",
		ClientID:              "cid-" + id,
		ClientSecret:          "secret-" + id,
		RedirectURI:           "http://localhost:3000/api/auth/" + id + "/callback",
		Scope:                 "identify email",
		Enabled:               true,
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg, err := NewRegistry([]ProviderConfig{staticConfig("discord"), staticConfig("github")})
	require.NoError(t, err)

	cfg, err := reg.Resolve("discord")
	require.NoError(t, err)
	assert.Equal(t, "cid-discord", cfg.ClientID)

	// case-insensitive, trimmed
	_, err = reg.Resolve("  GitHub ")
	require.NoError(t, err)

	_, err = reg.Resolve("myspace")
	assert.True(t, errors.Is(err, ErrNotConfigured))

	assert.Equal(t, []string{"discord", "github"}, reg.IDs())
}

func TestRegistry_DisabledProviderIsNotConfigured(t *testing.T) {
	c := staticConfig("google")
	c.Enabled = false
	reg, err := NewRegistry([]ProviderConfig{c})
	require.NoError(t, err)

	_, err = reg.Resolve("google")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Empty(t, reg.IDs())
}

func TestRegistry_RequiredProviderMissingCredentialsFails(t *testing.T) {
	c := staticConfig("discord")
	c.ClientSecret = ""
	_, err := NewRegistry([]ProviderConfig{c})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_secret")
}

func TestRegistry_OptionalProviderMissingCredentialsIsDisabled(t *testing.T) {
	opt := staticConfig("github")
	opt.ClientID = ""
	opt.Optional = true

	reg, err := NewRegistry([]ProviderConfig{staticConfig("discord"), opt})
	require.NoError(t, err)
	assert.Equal(t, []string{"discord"}, reg.IDs())

	_, err = reg.Resolve("github")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRegistry_DiscoveryNeedsIssuer(t *testing.T) {
	c := staticConfig("google")
	c.AuthorizationEndpoint, c.TokenEndpoint, c.UserInfoEndpoint = "", "", ""
	c.Issuer = ""
	_, err := NewRegistry([]ProviderConfig{c})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer")
}

func TestRegistry_DuplicateID(t *testing.T) {
	_, err := NewRegistry([]ProviderConfig{staticConfig("discord"), staticConfig("Discord")})
	require.Error(t, err)
}

func TestRegistry_InvalidIDAndScope(t *testing.T) {
	_, err := NewRegistry([]ProviderConfig{staticConfig("my.idp")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid id")

	c := staticConfig("acme")
	c.Scope = `openid "profile"`
	_, err = NewRegistry([]ProviderConfig{c})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scope")
}
