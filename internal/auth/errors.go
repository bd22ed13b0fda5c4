package auth

import "errors"

// Domain errors for the auth package.
var (
	// ErrTokenInvalid is returned when a token fails signature, expiry or
	// claim validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrUnknownRole is returned when a token is requested for a role that
	// does not exist.
	ErrUnknownRole = errors.New("auth: unknown role")

	// ErrSecretRequired is returned when signing without a secret.
	ErrSecretRequired = errors.New("auth: secret is required")
)
