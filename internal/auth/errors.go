package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")
)

// ErrInvalidToken covers every verification failure: bad signature, expiry,
// malformed input, unknown subject. Callers must not learn which one occurred.
var ErrInvalidToken = errors.New("auth: invalid token")
