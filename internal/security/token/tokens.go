// Package tokens genera los valores aleatorios del flujo (state, id de
// sesión) y el hash con el que se indexan en el store.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// DefaultBytes da 43 caracteres base64url.
const DefaultBytes = 32

// Opaque devuelve nBytes aleatorios en base64url sin padding. nBytes <= 0
// usa DefaultBytes.
func Opaque(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = DefaultBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash es sha256(s) en base64url sin padding. Se usa como key del store
// para no guardar el valor en claro.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
