// Package router arma el árbol de rutas HTTP.
package router

import (
	"net/http"

	authctrl "github.com/dropDatabas3/socialauth/internal/http/controllers/auth"
	"github.com/dropDatabas3/socialauth/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/socialauth/internal/http/errors"
	mw "github.com/dropDatabas3/socialauth/internal/http/middlewares"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps contiene las dependencias del router.
type Deps struct {
	BasePath string // default "/api/auth"

	Auth   *authctrl.Controller
	Health *health.HealthController

	// Gatherer para /metrics; nil = registry default.
	Gatherer prometheus.Gatherer
}

// New devuelve el handler raíz.
//
//	GET  {base}/{provider}/sign-in
//	GET  {base}/{provider}/callback
//	GET  {base}/me
//	POST {base}/logout
//	GET  /readyz
//	GET  /metrics
func New(deps Deps) http.Handler {
	base := deps.BasePath
	if base == "" {
		base = "/api/auth"
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		mw.WithLogging(),
		mw.WithRecover(),
		mw.WithMetrics(),
		mw.WithSecurityHeaders(),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	if deps.Health != nil {
		r.Get("/readyz", deps.Health.Readyz)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if deps.Auth != nil {
		r.Route(base, func(r chi.Router) {
			r.Use(mw.WithNoStore())
			r.Get("/{provider}/sign-in", deps.Auth.SignIn)
			r.Get("/{provider}/callback", deps.Auth.Callback)
			r.Get("/me", deps.Auth.Me)
			r.Post("/logout", deps.Auth.Logout)
		})
	}

	return r
}
