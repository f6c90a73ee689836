// Package health contiene el controller para health checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
)

// StatusSource expone el estado de inicialización de los providers.
type StatusSource interface {
	Status() oauth.InitResult
	Initialized() bool
}

// Pinger verifica el backend de cache (state PKCE y sesiones).
type Pinger interface {
	Ping(ctx context.Context) error
}

const pingTimeout = 2 * time.Second

// ProviderStatus es el estado de un provider en /readyz.
type ProviderStatus struct {
	ID    string `json:"id"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Response es el body de /readyz.
type Response struct {
	Status    string           `json:"status"` // ready | degraded | unavailable
	Version   string           `json:"version,omitempty"`
	Cache     string           `json:"cache,omitempty"` // ok | down
	Providers []ProviderStatus `json:"providers"`
}

// HealthController maneja las rutas de health check.
type HealthController struct {
	source  StatusSource
	cache   Pinger
	version string
}

// NewHealthController crea un nuevo controller de health check. cache puede
// ser nil.
func NewHealthController(source StatusSource, cache Pinger, version string) *HealthController {
	return &HealthController{source: source, cache: cache, version: version}
}

// Readyz maneja GET /readyz. 503 hasta que termine la inicialización, si
// ningún provider quedó listo o si el cache no responde.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	res := c.source.Status()
	resp := Response{Version: c.version, Providers: make([]ProviderStatus, 0, len(res.Ready)+len(res.Failed))}
	for _, id := range res.Ready {
		resp.Providers = append(resp.Providers, ProviderStatus{ID: id, Ready: true})
	}
	for id, err := range res.Failed {
		resp.Providers = append(resp.Providers, ProviderStatus{ID: id, Error: err.Error()})
	}
	sort.Slice(resp.Providers, func(i, j int) bool { return resp.Providers[i].ID < resp.Providers[j].ID })

	cacheOK := true
	if c.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		err := c.cache.Ping(ctx)
		cancel()
		cacheOK = err == nil
		resp.Cache = "ok"
		if !cacheOK {
			resp.Cache = "down"
			log.Warn("cache ping failed", logger.Err(err))
		}
	}

	status := http.StatusOK
	switch {
	case !c.source.Initialized() || len(res.Ready) == 0 || !cacheOK:
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	case len(res.Failed) > 0:
		resp.Status = "degraded"
	default:
		resp.Status = "ready"
	}

	log.Debug("readiness checked", logger.String("status", resp.Status), logger.Count(len(resp.Providers)))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
