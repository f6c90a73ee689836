package auth

import (
	"net/http"
	"time"
)

// CookieConfig define los nombres y atributos de las cookies del flujo.
type CookieConfig struct {
	StateName   string        // default "oauth_state"
	SessionName string        // default "auth_token"
	Secure      bool          // true en prod
	StateTTL    time.Duration // MaxAge de la cookie de state
	SessionTTL  time.Duration // MaxAge de la cookie de sesión
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.StateName == "" {
		c.StateName = "oauth_state"
	}
	if c.SessionName == "" {
		c.SessionName = "auth_token"
	}
	if c.StateTTL <= 0 {
		c.StateTTL = 10 * time.Minute
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 7 * 24 * time.Hour
	}
	return c
}

// setCookie escribe una cookie HttpOnly, SameSite=Lax.
func (c CookieConfig) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
