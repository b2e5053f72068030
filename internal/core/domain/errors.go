package domain

import "errors"

var (
	// ErrUnauthenticated covers a missing, malformed, badly signed or expired token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized means the caller is known but lacks a required role.
	ErrUnauthorized = errors.New("forbidden")
	// ErrUpstreamUnreachable is a transport failure talking to the upstream.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStoreUnavailable is returned when the credential store cannot hand
	// out a connection in time.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// ErrInvalidRequest means the inbound request could not be read.
var ErrInvalidRequest = errors.New("invalid request")
