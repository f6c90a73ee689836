package oauth

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// StringField lee raw[key] como string. Acepta números (json.Number o
// float64) y los convierte sin notación exponencial.
func StringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

// FirstString devuelve el primer campo no vacío entre keys.
func FirstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := StringField(raw, k); s != "" {
			return s
		}
	}
	return ""
}

// OptionalString es FirstString con nil para "ausente".
func OptionalString(raw map[string]any, keys ...string) *string {
	if s := FirstString(raw, keys...); s != "" {
		return &s
	}
	return nil
}

// ProfileID usa id, luego sub y como último recurso un UUID nuevo.
// El fallback no sirve como clave de deduplicación.
func ProfileID(raw map[string]any) string {
	if id := FirstString(raw, "id", "sub"); id != "" {
		return id
	}
	return uuid.NewString()
}
