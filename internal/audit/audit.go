// Package audit emite eventos de auditoría del flujo de sign-in como
// entradas estructuradas en el logger "audit".
package audit

import (
	"context"
	"time"

	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"go.uber.org/zap"
)

// Eventos.
const (
	EventSignInStarted   = "signin.started"
	EventSignInCompleted = "signin.completed"
	EventSignInFailed    = "signin.failed"
	EventLogout          = "session.logout"
)

// Log escribe un evento. El request_id del logger del contexto se conserva.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("event", event),
		zap.Time("ts", time.Now().UTC()),
	}
	logger.From(ctx).Named("audit").Info("audit", append(base, fields...)...)
}
