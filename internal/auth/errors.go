package auth

import "errors"

// Terminal, per-request failures surfaced to the transport.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUsername  = errors.New("username already in use")
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrUserNotFound       = errors.New("user not found")
)

var (
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters")
	ErrInvalidUsername   = errors.New("username must be 3 to 30 characters")
	ErrInvalidEmail      = errors.New("email is invalid")
	ErrSecretRequired    = errors.New("signing secret must not be empty")
	ErrUnsupportedMethod = errors.New("unsupported signing algorithm")
)
