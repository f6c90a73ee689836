// Package auth contiene el controller de las rutas de sign-in social.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	svc "github.com/dropDatabas3/socialauth/internal/auth"
	httperrors "github.com/dropDatabas3/socialauth/internal/http/errors"
	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/go-chi/chi/v5"
)

// Controller maneja sign-in, callback, me y logout.
type Controller struct {
	service           svc.Service
	cookies           CookieConfig
	postLoginRedirect string
}

// Deps contiene las dependencias del controller.
type Deps struct {
	Service           svc.Service
	Cookies           CookieConfig
	PostLoginRedirect string
}

// NewController crea el controller.
func NewController(deps Deps) *Controller {
	return &Controller{
		service:           deps.Service,
		cookies:           deps.Cookies.withDefaults(),
		postLoginRedirect: deps.PostLoginRedirect,
	}
}

// SignIn maneja GET /{provider}/sign-in
func (c *Controller) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Controller.SignIn"), logger.Provider(provider))

	si, err := c.service.StartSignIn(ctx, provider)
	if err != nil {
		log.Warn("sign-in failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	c.cookies.setCookie(w, c.cookies.StateName, si.State, c.cookies.StateTTL)
	http.Redirect(w, r, si.RedirectURL, http.StatusFound)
}

// Callback maneja GET /{provider}/callback
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Controller.Callback"), logger.Provider(provider))

	returned := r.URL.Query().Get("state")
	transport := cookieValue(r, c.cookies.StateName)

	res, err := c.service.HandleCallback(ctx, provider, returned, transport, callbackURL(r))
	if err != nil {
		// Si se llegó a consumir el state la cookie ya no sirve.
		if stateConsumed(err) {
			c.cookies.clearCookie(w, c.cookies.StateName)
		}
		log.Warn("callback failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	c.cookies.setCookie(w, c.cookies.SessionName, res.Credential.Token, c.cookies.SessionTTL)
	c.cookies.clearCookie(w, c.cookies.StateName)
	http.Redirect(w, r, c.postLoginRedirect, http.StatusFound)
}

// Me maneja GET /me
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Controller.Me"))

	token := cookieValue(r, c.cookies.SessionName)
	if token == "" {
		httperrors.WriteError(w, httperrors.ErrNotAuthenticated)
		return
	}

	u, err := c.service.CurrentUser(ctx, token)
	if err != nil {
		log.Debug("me failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Logout maneja POST /logout. Limpia la cookie siempre; responde 200 salvo
// que falle la revocación.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Controller.Logout"))

	token := cookieValue(r, c.cookies.SessionName)
	// la cookie se limpia aunque la revocación falle
	c.cookies.clearCookie(w, c.cookies.SessionName)

	if token != "" {
		if err := c.service.Logout(ctx, token); err != nil {
			log.Error("logout failed", logger.Err(err))
			httperrors.WriteError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// stateConsumed reporta si HandleCallback llegó a consumir el state antes
// de fallar.
func stateConsumed(err error) bool {
	if errors.Is(err, oauth.ErrAuthenticationFailed) {
		return true
	}
	return !errors.Is(err, oauth.ErrNotConfigured) &&
		!errors.Is(err, oauth.ErrNotReady) &&
		!errors.Is(err, oauth.ErrStateMismatch)
}

// callbackURL reconstruye la URL completa del callback tal como la vio el
// navegador (respeta X-Forwarded-Proto detrás de un proxy).
func callbackURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
