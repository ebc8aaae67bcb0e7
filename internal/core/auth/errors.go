package auth

import "errors"

// Authentication errors. Missing, malformed and unknown keys all answer 401 so
// a caller cannot probe which keys exist; a revoked key answers 403.
var (
	ErrMissingKey       = errors.New("API key required in X-API-Key header")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")

	// ErrUnavailable wraps storage failures during authentication.
	ErrUnavailable = errors.New("authentication store unavailable")
)
