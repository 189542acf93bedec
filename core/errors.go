package core

import "errors"

var (
	// ErrKeyMaterial is returned when a configured key is absent or unparseable
	ErrKeyMaterial = errors.New("invalid key material")

	// ErrSigning is returned when a token cannot be signed
	ErrSigning = errors.New("failed to sign token")

	// ErrInvalidInput is returned for client input that fails validation
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateUser      = errors.New("user with that email already exists")
	ErrUserNotFound       = errors.New("user not found")
)
