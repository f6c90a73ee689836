// Package util tiene helpers chicos sin dependencias del dominio.
package util

import "strings"

// MaskEmail deja la primera letra del usuario y del dominio para que el
// email sea reconocible en logs sin exponerlo. nil o vacío devuelve "".
func MaskEmail(email *string) string {
	if email == nil {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(*email))
	if s == "" {
		return ""
	}

	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" {
		return "***"
	}
	local = local[:1] + "***"

	host, tld, hasTLD := strings.Cut(domain, ".")
	if host != "" {
		host = host[:1] + "***"
	}
	if hasTLD {
		return local + "@" + host + "." + tld
	}
	return local + "@" + host
}
