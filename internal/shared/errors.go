package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenRevoked is returned for a bearer token that was logged out.
	ErrTokenRevoked = errors.New("token revoked")
)
