// Package auth es el motor del flujo de autorización: arma el redirect al
// provider, valida el callback, canjea el code, normaliza el perfil y emite
// la sesión.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/socialauth/internal/audit"
	"github.com/dropDatabas3/socialauth/internal/metrics"
	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/dropDatabas3/socialauth/internal/pkce"
	"github.com/dropDatabas3/socialauth/internal/session"
	"github.com/dropDatabas3/socialauth/internal/users"
	"github.com/dropDatabas3/socialauth/internal/util"
	"github.com/google/uuid"
)

// SignIn es el resultado de StartSignIn. State debe viajar también por el
// transporte (cookie) para el chequeo anti-CSRF del callback.
type SignIn struct {
	RedirectURL string
	State       string
}

// Result es el resultado de un callback exitoso.
type Result struct {
	Credential *session.Credential
	UserID     string
	Provider   string
}

// ClientSource resuelve la configuración lista para usar de un provider.
type ClientSource interface {
	GetClient(providerID string) (*oauth.ResolvedClient, error)
}

// Service define las operaciones del flujo.
type Service interface {
	StartSignIn(ctx context.Context, providerID string) (*SignIn, error)
	HandleCallback(ctx context.Context, providerID, returnedState, transportState, callbackURL string) (*Result, error)
	ResolveSession(ctx context.Context, credential string) (string, error)
	RevokeSession(ctx context.Context, credential string) error
	CurrentUser(ctx context.Context, credential string) (*users.User, error)
	Logout(ctx context.Context, credential string) error
}

// Deps contiene las dependencias del service.
type Deps struct {
	Registry *oauth.Registry
	Clients  ClientSource
	Adapters *oauth.Adapters
	States   *pkce.Store
	Sessions *session.Issuer
	Users    users.Repository
}

type service struct {
	registry *oauth.Registry
	clients  ClientSource
	adapters *oauth.Adapters
	states   *pkce.Store
	sessions *session.Issuer
	users    users.Repository
	now      func() time.Time
}

// NewService crea el Service.
func NewService(deps Deps) Service {
	return &service{
		registry: deps.Registry,
		clients:  deps.Clients,
		adapters: deps.Adapters,
		states:   deps.States,
		sessions: deps.Sessions,
		users:    deps.Users,
		now:      time.Now,
	}
}

// authFailure es lo que ve el caller cuando fallan exchange, profile o
// normalización: mensaje genérico, causa disponible solo vía errors.Is/As.
type authFailure struct{ cause error }

func (e *authFailure) Error() string        { return oauth.ErrAuthenticationFailed.Error() }
func (e *authFailure) Unwrap() error        { return e.cause }
func (e *authFailure) Is(target error) bool { return target == oauth.ErrAuthenticationFailed }

func (s *service) StartSignIn(ctx context.Context, providerID string) (*SignIn, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.flow"),
		logger.Op("StartSignIn"),
		logger.Provider(providerID),
	)

	cfg, err := s.registry.Resolve(providerID)
	if err != nil {
		return nil, err
	}
	rc, err := s.clients.GetClient(cfg.ID)
	if err != nil {
		log.Warn("provider not ready", logger.Err(err))
		return nil, err
	}

	pending, challenge, err := s.states.Begin(ctx, cfg.ID)
	if err != nil {
		log.Error("failed to record pending authorization", logger.Err(err))
		return nil, err
	}

	params := s.adapters.For(cfg.ID).AuthorizationParams(rc, pending.State, challenge)
	redirect, err := buildAuthorizationURL(rc.AuthURL, params)
	if err != nil {
		log.Error("invalid authorization endpoint", logger.Err(err))
		return nil, err
	}

	metrics.SignInStarted.WithLabelValues(cfg.ID).Inc()
	audit.Log(ctx, audit.EventSignInStarted, logger.Provider(cfg.ID))
	log.Info("redirecting to provider", logger.Endpoint(rc.AuthURL))
	return &SignIn{RedirectURL: redirect, State: pending.State}, nil
}

func (s *service) HandleCallback(ctx context.Context, providerID, returnedState, transportState, callbackURL string) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.flow"),
		logger.Op("HandleCallback"),
		logger.Provider(providerID),
	)

	cfg, err := s.registry.Resolve(providerID)
	if err != nil {
		metrics.Callbacks.WithLabelValues("unknown", "not_configured").Inc()
		return nil, err
	}
	id := cfg.ID

	// Anti-CSRF: el state del query debe coincidir con el del transporte.
	// Se rechaza antes de tocar el store.
	if returnedState == "" || transportState == "" || returnedState != transportState {
		metrics.Callbacks.WithLabelValues(id, "state_mismatch").Inc()
		log.Warn("state mismatch",
			logger.Bool("query_state_present", returnedState != ""),
			logger.Bool("transport_state_present", transportState != ""),
		)
		return nil, oauth.ErrStateMismatch
	}

	rc, err := s.clients.GetClient(id)
	if err != nil {
		metrics.Callbacks.WithLabelValues(id, "not_ready").Inc()
		return nil, err
	}

	// Desde acá el state queda consumido pase lo que pase.
	pending, err := s.states.Consume(ctx, returnedState)
	if err != nil {
		metrics.Callbacks.WithLabelValues(id, "invalid_state").Inc()
		if !errors.Is(err, pkce.ErrNotFound) {
			log.Error("state store failure", logger.Err(err))
		}
		return nil, oauth.ErrInvalidOrExpiredState
	}
	if pending.Provider != id {
		metrics.Callbacks.WithLabelValues(id, "invalid_state").Inc()
		log.Warn("state issued for another provider")
		return nil, oauth.ErrInvalidOrExpiredState
	}

	adapter := s.adapters.For(id)

	user, err := s.authenticate(ctx, adapter, rc, callbackURL, pending)
	if err != nil {
		metrics.Callbacks.WithLabelValues(id, "failed").Inc()
		log.Error("authentication failed", logger.Err(err))
		audit.Log(ctx, audit.EventSignInFailed, logger.Provider(id))
		return nil, &authFailure{cause: err}
	}

	rec := users.FromNormalized(uuid.NewString(), *user, s.now())
	if err := s.users.Save(ctx, rec); err != nil {
		metrics.Callbacks.WithLabelValues(id, "failed").Inc()
		log.Error("failed to save user", logger.Err(err))
		return nil, fmt.Errorf("save user: %w", err)
	}

	cred, err := s.sessions.Issue(ctx, rec.ID)
	if err != nil {
		metrics.Callbacks.WithLabelValues(id, "failed").Inc()
		log.Error("failed to issue session", logger.Err(err))
		_, _ = s.users.Delete(ctx, rec.ID)
		return nil, err
	}

	metrics.Callbacks.WithLabelValues(id, "ok").Inc()
	log.Info("sign-in completed", logger.UserID(rec.ID))
	audit.Log(ctx, audit.EventSignInCompleted,
		logger.Provider(id),
		logger.UserID(rec.ID),
		logger.Email(util.MaskEmail(rec.Email)),
	)
	return &Result{Credential: cred, UserID: rec.ID, Provider: id}, nil
}

// authenticate cubre exchange, profile fetch y normalización. Ningún paso
// reintenta.
func (s *service) authenticate(ctx context.Context, adapter oauth.Adapter, rc *oauth.ResolvedClient, callbackURL string, pending pkce.Pending) (*oauth.NormalizedUser, error) {
	tok, err := adapter.ExchangeToken(ctx, rc, callbackURL, pending.State, pending.Verifier)
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", oauth.ErrTokenExchangeFailed)
	}

	raw, err := adapter.FetchProfile(ctx, rc, tok)
	if err != nil {
		return nil, err
	}

	u := adapter.Normalize(raw)
	u.Provider = rc.ID()
	return &u, nil
}

func (s *service) ResolveSession(ctx context.Context, credential string) (string, error) {
	sess, err := s.sessions.Resolve(ctx, credential)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

func (s *service) RevokeSession(ctx context.Context, credential string) error {
	return s.sessions.Revoke(ctx, credential)
}

// CurrentUser devuelve el usuario de la sesión; users.ErrNotFound si el
// registro ya no existe.
func (s *service) CurrentUser(ctx context.Context, credential string) (*users.User, error) {
	userID, err := s.ResolveSession(ctx, credential)
	if err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, userID)
}

// Logout revoca la sesión y después borra el usuario asociado. Con una
// credencial inválida no hace nada y no es error.
func (s *service) Logout(ctx context.Context, credential string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.flow"),
		logger.Op("Logout"),
	)

	// sin sesión revocada no se toca el usuario
	userID, resolveErr := s.ResolveSession(ctx, credential)
	if err := s.sessions.Revoke(ctx, credential); err != nil {
		log.Error("failed to revoke session", logger.Err(err))
		return err
	}
	if resolveErr != nil {
		return nil
	}
	if _, err := s.users.Delete(ctx, userID); err != nil {
		log.Error("failed to delete user", logger.UserID(userID), logger.Err(err))
	}
	audit.Log(ctx, audit.EventLogout, logger.UserID(userID))
	return nil
}

// buildAuthorizationURL agrega params al endpoint, preservando su query.
// Los espacios se codifican como %20 (scope=identify%20email).
func buildAuthorizationURL(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid authorization endpoint %q", endpoint)
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = strings.ReplaceAll(q.Encode(), "+", "%20")
	return u.String(), nil
}
