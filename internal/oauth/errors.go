package oauth

import "errors"

// Errores del flujo. Los pasos internos envuelven estos sentinels con %w;
// internal/auth colapsa los de exchange/profile a ErrAuthenticationFailed.
var (
	ErrNotConfigured         = errors.New("provider not configured")
	ErrNotReady              = errors.New("provider not ready")
	ErrStateMismatch         = errors.New("state mismatch")
	ErrInvalidOrExpiredState = errors.New("invalid or expired state")
	ErrProviderUnavailable   = errors.New("identity provider unavailable")
	ErrTokenExchangeFailed   = errors.New("token exchange failed")
	ErrProfileFetchFailed    = errors.New("profile fetch failed")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrInvalidSession        = errors.New("invalid session")
)
