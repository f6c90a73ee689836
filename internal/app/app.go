// Package app arma el proceso completo: cache, registry, factory de
// clientes, stores, service de auth y handler HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dropDatabas3/socialauth/internal/auth"
	"github.com/dropDatabas3/socialauth/internal/cache"
	"github.com/dropDatabas3/socialauth/internal/config"
	authctrl "github.com/dropDatabas3/socialauth/internal/http/controllers/auth"
	"github.com/dropDatabas3/socialauth/internal/http/controllers/health"
	mw "github.com/dropDatabas3/socialauth/internal/http/middlewares"
	"github.com/dropDatabas3/socialauth/internal/http/router"
	"github.com/dropDatabas3/socialauth/internal/metrics"
	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/dropDatabas3/socialauth/internal/oauth/discord"
	"github.com/dropDatabas3/socialauth/internal/oauth/github"
	"github.com/dropDatabas3/socialauth/internal/oauth/google"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/dropDatabas3/socialauth/internal/pkce"
	"github.com/dropDatabas3/socialauth/internal/session"
	"github.com/dropDatabas3/socialauth/internal/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 10 * time.Second

// App es el proceso cableado.
type App struct {
	Config   *config.Config
	Cache    cache.Client
	Registry *oauth.Registry
	Clients  *oauth.Factory
	Auth     auth.Service
	Users    users.Repository
	Metrics  *prometheus.Registry
	Handler  http.Handler
}

// Build crea todas las dependencias a partir de la config. No hace I/O
// contra los providers: eso ocurre en Init.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.From(ctx).With(logger.Component("app"), logger.Op("Build"))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	registry, err := oauth.NewRegistry(cfg.ProviderConfigs())
	if err != nil {
		return nil, err
	}

	store, err := cache.New(ctx, cache.Config{
		Driver:     cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.StateTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	reg := prometheus.NewRegistry()
	if err := errors.Join(
		reg.Register(collectors.NewGoCollector()),
		reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
		metrics.Register(reg),
		mw.RegisterMetrics(reg),
	); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	hc := &http.Client{Timeout: cfg.HTTPTimeout()}
	clients := oauth.NewFactory(oauth.FactoryDeps{
		Registry:         registry,
		HTTPClient:       hc,
		DiscoveryTimeout: cfg.DiscoveryTimeout(),
	})

	issuer, err := session.NewIssuer(store, session.Config{
		Secret: cfg.Session.Secret,
		TTL:    cfg.SessionTTL(),
		Issuer: cfg.Session.Issuer,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	repo := users.NewMemoryRepository()
	svc := auth.NewService(auth.Deps{
		Registry: registry,
		Clients:  clients,
		Adapters: oauth.NewAdapters(hc, discord.New(hc), github.New(hc), google.New(hc)),
		States:   pkce.NewStore(store, cfg.StateTTL()),
		Sessions: issuer,
		Users:    repo,
	})

	handler := router.New(router.Deps{
		BasePath: cfg.Server.BasePath,
		Auth: authctrl.NewController(authctrl.Deps{
			Service: svc,
			Cookies: authctrl.CookieConfig{
				StateName:   cfg.OAuth.StateCookieName,
				SessionName: cfg.Session.CookieName,
				Secure:      cfg.CookiesSecure(),
				StateTTL:    cfg.StateTTL(),
				SessionTTL:  cfg.SessionTTL(),
			},
			PostLoginRedirect: cfg.Server.PostLoginRedirect,
		}),
		Health:   health.NewHealthController(clients, store, cfg.App.Version),
		Gatherer: reg,
	})

	log.Info("app built",
		logger.String("cache", cfg.Cache.Kind),
		logger.Any("providers", registry.IDs()),
	)

	return &App{
		Config:   cfg,
		Cache:    store,
		Registry: registry,
		Clients:  clients,
		Auth:     svc,
		Users:    repo,
		Metrics:  reg,
		Handler:  handler,
	}, nil
}

// Init resuelve todos los providers y espera el resultado. Los fallos se
// reportan pero no son fatales.
func (a *App) Init(ctx context.Context) oauth.InitResult {
	res := a.Clients.InitAll(ctx)
	log := logger.From(ctx).With(logger.Component("app"), logger.Op("Init"))
	for id, err := range res.Failed {
		log.Warn("provider unavailable until restart", logger.Provider(id), logger.Err(err))
	}
	log.Info("providers initialized", logger.Count(len(res.Ready)), logger.Any("ready", res.Ready))
	return res
}

// Serve inicializa los providers, escucha en cfg.Server.Addr y hace
// shutdown ordenado cuando ctx se cancela.
func (a *App) Serve(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Component("app"), logger.Op("Serve"))

	a.Init(ctx)

	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening",
			logger.String("addr", srv.Addr),
			logger.String("base_path", a.Config.Server.BasePath),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close libera el cache.
func (a *App) Close() error {
	if a.Cache == nil {
		return nil
	}
	return a.Cache.Close()
}
