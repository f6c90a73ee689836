package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/socialauth/internal/metrics"
)

const wellKnownPath = "/.well-known/openid-configuration"

// Metadata es el subconjunto del documento de discovery OIDC que usamos.
type Metadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// Discover obtiene {issuer}/.well-known/openid-configuration.
// Exige https salvo para hosts loopback (desarrollo y tests) y valida que el
// issuer del documento coincida con el configurado.
func Discover(ctx context.Context, hc *http.Client, providerID, issuer string) (*Metadata, error) {
	base := strings.TrimRight(strings.TrimSpace(issuer), "/")
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("discovery: invalid issuer %q", issuer)
	}
	if u.Scheme != "https" && !(u.Scheme == "http" && isLoopback(u.Hostname())) {
		return nil, fmt.Errorf("discovery: issuer %q must use https", issuer)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+wellKnownPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := hc.Do(req)
	metrics.ObserveProviderRequest(providerID, "discovery", start)
	if err != nil {
		return nil, fmt.Errorf("%w: discovery: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: discovery http %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("discovery http %d", resp.StatusCode)
	}

	var md Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("discovery: decode: %w", err)
	}
	if strings.TrimRight(md.Issuer, "/") != base {
		return nil, fmt.Errorf("discovery: issuer mismatch: got %q want %q", md.Issuer, issuer)
	}
	return &md, nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
