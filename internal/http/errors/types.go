package errors

import (
	"fmt"
	"net/http"
)

// AppError es el error estándar que cruza la frontera HTTP.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Causa original; solo para logs
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

var (
	ErrStateMismatch = &AppError{
		Code:       "STATE_MISMATCH",
		Message:    "State mismatch",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidState = &AppError{
		Code:       "INVALID_STATE",
		Message:    "Invalid or expired state",
		HTTPStatus: http.StatusBadRequest,
	}
)

var (
	ErrNotAuthenticated = &AppError{
		Code:       "NOT_AUTHENTICATED",
		Message:    "Not authenticated",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidToken = &AppError{
		Code:       "INVALID_TOKEN",
		Message:    "Invalid token",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrAuthenticationFailed = &AppError{
		Code:       "AUTHENTICATION_FAILED",
		Message:    "Authentication failed",
		HTTPStatus: http.StatusUnauthorized,
	}
)

var (
	ErrInvalidProvider = &AppError{
		Code:       "INVALID_PROVIDER",
		Message:    "Invalid provider",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUserNotFound = &AppError{
		Code:       "USER_NOT_FOUND",
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Method not allowed",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "Something went wrong",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrProviderNotReady = &AppError{
		Code:       "PROVIDER_NOT_READY",
		Message:    "Provider temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
