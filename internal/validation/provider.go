package validation

import (
	"regexp"
	"strings"
)

// Reglas de id de provider:
// - Solo minúsculas, dígitos, "_" y "-".
// - Empieza y termina con [a-z0-9].
// - Largo 1..32.
//
// El id se usa en la ruta (/{provider}/callback) y como prefijo de env
// ({ID}_CLIENT_ID), por eso no admite "." ni ":".
var providerIDRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9_-]{0,30}[a-z0-9])?$`)

// ValidProviderID reporta si id sirve como id de provider.
func ValidProviderID(id string) bool {
	return providerIDRe.MatchString(id)
}

// ValidScopeToken sigue la gramática scope-token de RFC 6749 §3.3:
// 1*( %x21 / %x23-5B / %x5D-7E ). Admite "read:user" y scopes con URL.
func ValidScopeToken(tok string) bool {
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if c < 0x21 || c > 0x7e || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}

// InvalidScopes devuelve los tokens de scope (separados por espacios) que
// no cumplen ValidScopeToken.
func InvalidScopes(scope string) []string {
	var bad []string
	for _, tok := range strings.Fields(scope) {
		if !ValidScopeToken(tok) {
			bad = append(bad, tok)
		}
	}
	return bad
}
