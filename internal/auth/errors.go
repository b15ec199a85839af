package auth

import "errors"

var (
	// ErrInvalidToken indicates the token failed validation for any reason.
	// Callers must treat it uniformly as "unauthenticated"; the underlying
	// cause is visible only in logs.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrKeyNotFound indicates the key identifier is absent from the
	// authority's published key set.
	ErrKeyNotFound = errors.New("auth: signing key not found")
)
