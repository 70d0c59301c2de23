package types

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidSessionID     = errors.New("invalid session id")
	ErrInvalidMode          = errors.New("invalid chat mode")
	ErrNotConfigured        = errors.New("source not configured")
	ErrNarrativeUnavailable = errors.New("narrative service unavailable")
)
