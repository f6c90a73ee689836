package oauth

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/socialauth/internal/metrics"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"golang.org/x/sync/errgroup"
)

// InitResult es el resultado tipado de InitAll.
type InitResult struct {
	Ready  []string
	Failed map[string]error
}

// OK reporta si todos los providers quedaron listos.
func (r InitResult) OK() bool { return len(r.Failed) == 0 }

// FactoryDeps contiene las dependencias del Factory.
type FactoryDeps struct {
	Registry         *Registry
	HTTPClient       *http.Client  // usado para discovery
	DiscoveryTimeout time.Duration // default 10s
	Concurrency      int           // default 4
}

// Factory construye y cachea un ResolvedClient por provider.
// La resolución ocurre una sola vez (InitAll); no hay refresh ni retry.
type Factory struct {
	registry    *Registry
	http        *http.Client
	timeout     time.Duration
	concurrency int
	now         func() time.Time

	mu      sync.RWMutex
	clients map[string]*ResolvedClient
	failed  map[string]error
	done    bool
}

// NewFactory crea un Factory. Ningún provider está listo hasta InitAll.
func NewFactory(deps FactoryDeps) *Factory {
	hc := deps.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	timeout := deps.DiscoveryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conc := deps.Concurrency
	if conc <= 0 {
		conc = 4
	}
	return &Factory{
		registry:    deps.Registry,
		http:        hc,
		timeout:     timeout,
		concurrency: conc,
		now:         time.Now,
		clients:     make(map[string]*ResolvedClient),
		failed:      make(map[string]error),
	}
}

// InitAll resuelve todos los providers del registry en paralelo y espera a
// que terminen. Un fallo deja ese provider no disponible hasta reiniciar;
// nunca aborta a los demás.
func (f *Factory) InitAll(ctx context.Context) InitResult {
	log := logger.From(ctx).With(logger.Component("oauth.factory"), logger.Op("InitAll"))

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for _, id := range f.registry.IDs() {
		cfg, _ := f.registry.Resolve(id)
		g.Go(func() error {
			rc, err := f.resolve(ctx, cfg)

			f.mu.Lock()
			if err != nil {
				f.failed[cfg.ID] = err
			} else {
				f.clients[cfg.ID] = rc
			}
			f.mu.Unlock()

			if err != nil {
				metrics.ProvidersReady.WithLabelValues(cfg.ID).Set(0)
				log.Error("provider initialization failed", logger.Provider(cfg.ID), logger.Err(err))
				return nil
			}
			metrics.ProvidersReady.WithLabelValues(cfg.ID).Set(1)
			log.Info("provider ready",
				logger.Provider(cfg.ID),
				logger.Bool("discovered", rc.Discovered),
			)
			return nil
		})
	}
	_ = g.Wait()

	f.mu.Lock()
	f.done = true
	f.mu.Unlock()

	return f.Status()
}

// Status devuelve el estado actual sin hacer I/O.
func (f *Factory) Status() InitResult {
	f.mu.RLock()
	defer f.mu.RUnlock()

	res := InitResult{Ready: make([]string, 0, len(f.clients)), Failed: make(map[string]error, len(f.failed))}
	for id := range f.clients {
		res.Ready = append(res.Ready, id)
	}
	for id, err := range f.failed {
		res.Failed[id] = err
	}
	sort.Strings(res.Ready)
	return res
}

// Initialized reporta si InitAll ya terminó.
func (f *Factory) Initialized() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.done
}

// GetClient devuelve el cliente resuelto. Nunca bloquea esperando discovery:
// un provider desconocido da ErrNotConfigured; uno que falló o todavía no
// terminó de resolverse da ErrNotReady.
func (f *Factory) GetClient(providerID string) (*ResolvedClient, error) {
	cfg, err := f.registry.Resolve(providerID)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if rc, ok := f.clients[cfg.ID]; ok {
		return rc, nil
	}
	if cause, ok := f.failed[cfg.ID]; ok {
		return nil, fmt.Errorf("%w: %q: %v", ErrNotReady, cfg.ID, cause)
	}
	return nil, fmt.Errorf("%w: %q", ErrNotReady, cfg.ID)
}

func (f *Factory) resolve(ctx context.Context, cfg ProviderConfig) (*ResolvedClient, error) {
	rc := &ResolvedClient{
		Config:      cfg,
		AuthURL:     cfg.AuthorizationEndpoint,
		TokenURL:    cfg.TokenEndpoint,
		UserInfoURL: cfg.UserInfoEndpoint,
		ResolvedAt:  f.now(),
	}
	if !cfg.NeedsDiscovery() {
		return rc, nil
	}

	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	md, err := Discover(dctx, f.http, cfg.ID, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	// Solo se completan los campos vacíos; lo configurado explícitamente gana.
	if rc.AuthURL == "" {
		rc.AuthURL = md.AuthorizationEndpoint
	}
	if rc.TokenURL == "" {
		rc.TokenURL = md.TokenEndpoint
	}
	if rc.UserInfoURL == "" {
		rc.UserInfoURL = md.UserInfoEndpoint
	}
	rc.JWKSURI = md.JWKSURI
	rc.Discovered = true

	if rc.AuthURL == "" || rc.TokenURL == "" || rc.UserInfoURL == "" {
		return nil, fmt.Errorf("discovery: %q metadata lacks required endpoints", cfg.ID)
	}
	return rc, nil
}
