// Package oauth implements the provider side of the social sign-in flow.
//
// Pieces, leaf-first:
//   - Registry: read-only allow-list of configured providers (ProviderConfig)
//   - Factory: turns each ProviderConfig into a ResolvedClient, either locally
//     (all endpoints present) or via OIDC discovery, once per process
//   - Adapter: per-provider capability set (authorization params, token
//     exchange, profile fetch, normalization). Base implements the OAuth2 /
//     OIDC parts shared by every provider; provider packages embed it.
//
// The PKCE/state store and the flow engine live in internal/pkce and
// internal/auth.
package oauth
