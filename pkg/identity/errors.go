package identity

import "errors"

var (
	ErrMissingToken   = errors.New("identity: missing bearer token")
	ErrInvalidToken   = errors.New("identity: invalid token")
	ErrExpiredToken   = errors.New("identity: token is expired")
	ErrWeakSigningKey = errors.New("identity: signing key must be at least 32 bytes")
)
