package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del flujo OAuth. Viven en un paquete standalone para que oauth,
// auth, session y http puedan usarlas sin ciclos de import.

var (
	SignInStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialauth_signin_started_total",
		Help: "Sign-ins iniciados por provider",
	}, []string{"provider"})

	Callbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialauth_callbacks_total",
		Help: "Callbacks procesados por provider y resultado",
	}, []string{"provider", "result"}) // result: ok|state_mismatch|invalid_state|failed|not_configured|not_ready

	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialauth_provider_request_duration_seconds",
		Help:    "Latencia de requests salientes al identity provider",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "op"}) // op: discovery|token|userinfo|emails

	SessionsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialauth_sessions_issued_total",
		Help: "Sesiones emitidas",
	})

	ProvidersReady = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "socialauth_provider_ready",
		Help: "1 si el provider completó su inicialización, 0 si falló",
	}, []string{"provider"})
)

// ObserveProviderRequest registra la duración de un request saliente.
func ObserveProviderRequest(provider, op string, start time.Time) {
	ProviderRequestDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

// Register registra las métricas OAuth en el registry dado (o el default si es nil).
// Tolera registros repetidos para que tests y wiring puedan llamarlo más de una vez.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		SignInStarted,
		Callbacks,
		ProviderRequestDuration,
		SessionsIssued,
		ProvidersReady,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
