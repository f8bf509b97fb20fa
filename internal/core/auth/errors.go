package auth

import "errors"

// Authentication errors. UNAUTHENTICATED for missing or invalid keys (doesn't
// confirm key existence), PERMISSION_DENIED for revoked keys, UNAVAILABLE for
// storage failures.
var (
	ErrMissingKey       = errors.New("plugin key required in x-plugin-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid plugin key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid plugin key")
	ErrKeyRevoked       = errors.New("plugin key has been revoked")
	ErrKeyNotFound      = errors.New("plugin key not found")
	ErrStorage          = errors.New("key storage error")
)
