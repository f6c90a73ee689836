// Package errors traduce los errores de dominio a respuestas HTTP. La causa
// se loguea y nunca se serializa.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/dropDatabas3/socialauth/internal/users"
)

// errorResponse controla exactamente qué campos se envían al cliente.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FromError convierte cualquier error en un AppError. Los sentinels del
// dominio se mapean a su status; el resto es un 500 genérico.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	// ErrAuthenticationFailed primero: su causa puede envolver otros sentinels.
	switch {
	case stderrors.Is(err, oauth.ErrAuthenticationFailed):
		return ErrAuthenticationFailed.WithCause(err)
	case stderrors.Is(err, oauth.ErrNotConfigured):
		return ErrInvalidProvider.WithCause(err)
	case stderrors.Is(err, oauth.ErrNotReady):
		return ErrProviderNotReady.WithCause(err)
	case stderrors.Is(err, oauth.ErrStateMismatch):
		return ErrStateMismatch.WithCause(err)
	case stderrors.Is(err, oauth.ErrInvalidOrExpiredState):
		return ErrInvalidState.WithCause(err)
	case stderrors.Is(err, oauth.ErrInvalidSession):
		return ErrInvalidToken.WithCause(err)
	case stderrors.Is(err, users.ErrNotFound):
		return ErrUserNotFound.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// WriteError escribe la respuesta JSON del error.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
